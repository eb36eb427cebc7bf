//go:build tools
// +build tools

// Package tools records the development tools used while working on the
// certmailer service. They are installed with `go install` rather than
// tracked in go.mod because nothing at runtime depends on them.
package tools

// air (github.com/air-verse/air) restarts the server on save, which makes
// iterating on template rendering and the pipeline state machine bearable:
//
//	go install github.com/air-verse/air@latest
//
// golangci-lint runs the lint set used before pushing:
//
//	go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest
