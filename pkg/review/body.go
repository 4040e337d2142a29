package review

import (
	"io"
	"slices"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/placeholder"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Body builds a review request body: the configured introduction, a
// markdown table of the entry fields and the embedded envelope.
func Body(intro string, fields core.Fields, e Envelope) (string, error) {
	var sb strings.Builder
	sb.WriteString(intro)
	if intro != "" && !strings.HasSuffix(intro, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if err := FieldTable(&sb, fields); err != nil {
		return "", err
	}

	return Embed(sb.String(), e)
}

// FieldTable writes fields as a two-column markdown table, sorted by name.
func FieldTable(w io.Writer, fields core.Fields) error {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader([]string{"Field", "Content"}),
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := table.Append([]string{name, cell(placeholder.Stringify(fields[name]))}); err != nil {
			return err
		}
	}
	return table.Render()
}

var cellReplacer = strings.NewReplacer("\r\n", "<br>", "\n", "<br>", "|", "\\|")

func cell(s string) string {
	return cellReplacer.Replace(s)
}
