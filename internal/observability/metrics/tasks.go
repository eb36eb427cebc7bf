package metrics

import (
	"time"

	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultRetry   = "retry"
)

// Pipeline step names used as metric tags.
const (
	StepRender  = "render"
	StepConvert = "convert"
	StepSend    = "send"
)

// TaskMetric captures one pipeline step outcome for metric emission.
type TaskMetric struct {
	Step     string
	Result   string
	Attempt  int
	Duration time.Duration
	Err      error
}

// EmitTaskStep emits standardised task pipeline metrics.
func EmitTaskStep(sink statsd.Sink, in TaskMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"step":   in.Step,
		"result": in.Result,
	}

	if in.Err != nil && in.Result != ResultSuccess {
		if code := apperrors.GetCode(in.Err); code != "" {
			tags["error_class"] = string(code)
		}
	}

	sink.Count("task.step", 1, tags)

	if in.Duration > 0 {
		sink.Timing("task.step_duration", in.Duration, CloneTags(tags))
	}
}

// EmitJobFinished emits the aggregate outcome when a job's last task settles.
func EmitJobFinished(sink statsd.Sink, status string, total, failed int) {
	if sink == nil {
		return
	}
	tags := map[string]string{"status": status}
	sink.Count("job.finished", 1, tags)
	sink.Gauge("job.tasks_total", float64(total), CloneTags(tags))
	sink.Gauge("job.tasks_failed", float64(failed), CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
