package transcoder

import "fmt"

const bytesPerMB = 1024 * 1024

// Savings returns the percentage saved, (1 - compressed/original) * 100.
// It is 0 when original is 0.
func Savings(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return (1 - float64(compressed)/float64(original)) * 100
}

// FormatMB renders a byte count as megabytes with one decimal, e.g. "25.0MB".
func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.1fMB", float64(bytes)/bytesPerMB)
}

// FormatPercent renders a savings value with one decimal, e.g. "75.0%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}
