package format

import (
	"encoding/json"
	"fmt"
	"io"
)

const bytesPerMB = 1024 * 1024

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct{}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

// MB renders a byte count in megabytes with two decimals, e.g. "9.54 MB".
// Quota error messages shown to end users use this form.
func MB(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/bytesPerMB)
}

// Percent renders used/total as a percentage with one decimal, clamped to 0
// when total is zero.
func Percent(used, total int64) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(used)/float64(total)*100)
}
