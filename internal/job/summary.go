package job

import (
	"fmt"
	"time"
)

// Summary is the structured report printed when a job ends. Null artifact
// references mean the artifact is unavailable.
type Summary struct {
	TotalProcessTime string         `json:"Total process time"`
	SystemThroughput string         `json:"System throughput"`
	AssessmentTask   TaskSummary    `json:"Assessment Task"`
	OutlierFilter    *FilterSummary `json:"Outlier Filter,omitempty"`

	JobID      string        `json:"-"`
	Elapsed    time.Duration `json:"-"`
	Throughput float64       `json:"-"`
}

// TaskSummary describes the assessment artifacts.
type TaskSummary struct {
	Processed int            `json:"Processed"`
	Failed    int            `json:"Failed"`
	Input     string         `json:"Input"`
	Output    *string        `json:"Output"`
	Report    *ReportSummary `json:"Report"`
	Log       *string        `json:"Log"`
}

// ReportSummary points at the generated report views.
type ReportSummary struct {
	PreviewTable string `json:"Preview Table"`
	EDAReport    string `json:"EDA Report"`
}

// FilterSummary points at the filtered output and its report.
type FilterSummary struct {
	Output string `json:"Output"`
	Report string `json:"Report"`
}

// FormatElapsed renders d as <h>h<m>m<s>s.
func FormatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%dh%dm%ds", total/3600, total%3600/60, total%60)
}

// Throughput returns items per second, or zero when no time elapsed.
func Throughput(items int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(items) / d.Seconds()
}

// FormatThroughput renders a throughput value.
func FormatThroughput(rate float64) string {
	return fmt.Sprintf("%.2f it/s", rate)
}

func stringRef(s string) *string {
	return &s
}
