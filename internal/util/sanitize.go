package util //nolint:revive // package name util hosts shared naming helpers used across the pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// Keep word characters, whitespace, Arabic script, and hyphens.
	unsafeFolderChars = regexp.MustCompile(`[^\w\s\x{0600}-\x{06FF}-]`)
	unsafeFileChars   = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRuns    = regexp.MustCompile(`\s+`)
	hyphenRuns        = regexp.MustCompile(`-+`)
)

const maxFolderNameLen = 50

// SanitizeJobFolder converts an event name into a safe, unique directory name
// by stripping unsafe characters and appending a timestamp.
func SanitizeJobFolder(eventName string, now time.Time) string {
	s := unsafeFolderChars.ReplaceAllString(eventName, "")
	s = whitespaceRuns.ReplaceAllString(strings.TrimSpace(s), "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	// Cap by runes, not bytes; Arabic event names must not be cut mid-character.
	if runes := []rune(s); len(runes) > maxFolderNameLen {
		s = string(runes[:maxFolderNameLen])
	}
	return fmt.Sprintf("%s-%d", s, now.Unix())
}

// SanitizeFileName creates a safe file name fragment from a recipient name.
func SanitizeFileName(name string) string {
	s := unsafeFileChars.ReplaceAllString(name, "")
	return whitespaceRuns.ReplaceAllString(strings.TrimSpace(s), "-")
}
