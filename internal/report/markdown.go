package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs stats in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the stats in Markdown format.
func (w *MarkdownWriter) Write(stats *Stats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Squirrel Frontier Stats")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Ledger Backend", "`" + stats.Backend + "`"},
			{"Known Resources", strconv.FormatInt(stats.Known, 10)},
			{"Due For Recrawl", strconv.Itoa(stats.Due)},
			{"Recrawl Policy", stats.PolicyString()},
			{"Generated", stats.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	if stats.Recrawl && stats.Known > 0 {
		w.writeFreshnessChart(md, stats)
	}

	w.writeAlert(md, stats)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeFreshnessChart writes a mermaid pie chart of fresh versus due
// resources.
func (w *MarkdownWriter) writeFreshnessChart(md *markdown.Markdown, stats *Stats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resource Freshness"),
		piechart.WithShowData(true),
	)

	if fresh := stats.Known - int64(stats.Due); fresh > 0 {
		chart.LabelAndIntValue("Fresh", uint64(fresh))
	}
	if stats.Due > 0 {
		chart.LabelAndIntValue("Due", uint64(stats.Due))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the recrawl state.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, stats *Stats) {
	switch {
	case !stats.Recrawl:
		md.Note("Recrawling is disabled; known resources are never re-admitted.")
	case stats.Due > 0:
		md.Importantf("%d known resource(s) are due for recrawl.", stats.Due)
	default:
		md.Tip("Every known resource is within its recrawl window.")
	}
	md.PlainText("")
}

// writeFooter writes the stats footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [Squirrel](https://github.com/CatherineChiramel/Squirrel)*")
}
