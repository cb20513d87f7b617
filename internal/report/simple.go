package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs a human-readable text summary.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the stats in human-readable format.
func (w *SimpleWriter) Write(stats *Stats) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                     SQUIRREL FRONTIER STATS\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Ledger Backend:  %s\n", stats.Backend))
	sb.WriteString(fmt.Sprintf("Known Resources: %d\n", stats.Known))
	sb.WriteString(fmt.Sprintf("Due For Recrawl: %d\n", stats.Due))
	sb.WriteString(fmt.Sprintf("Recrawl Policy:  %s\n", stats.PolicyString()))
	sb.WriteString(fmt.Sprintf("Generated:       %s\n", stats.GeneratedAt.Format("2006-01-02 15:04:05 MST")))

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}
