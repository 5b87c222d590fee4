package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func statusTag(status string) string {
	switch status {
	case StatusSuccess:
		return "[OK]"
	case StatusError:
		return "[FAIL]"
	case StatusSkipped:
		return "[SKIP]"
	default:
		return ""
	}
}

// RenderASCII renders a Model as a vertical chain of boxes. Data edges are
// listed after the chain.
func RenderASCII(model *Model) string {
	var b strings.Builder
	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	var data []Edge
	for i, node := range model.Nodes {
		for _, line := range makeBox(node) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if i == len(model.Nodes)-1 {
			continue
		}
		label := ""
		for _, e := range model.Edges {
			if e.From == node.ID && !e.Data && e.Label != "" {
				label = " " + e.Label
			}
		}
		b.WriteString("    │" + label + "\n")
		b.WriteString("    ▼\n")
	}

	for _, e := range model.Edges {
		if e.Data {
			data = append(data, e)
		}
	}
	if len(data) > 0 {
		b.WriteString("\ndata:\n")
		for _, e := range data {
			fmt.Fprintf(&b, "  %s ─→ %s  %s\n", e.From, e.To, e.Label)
		}
	}
	return b.String()
}

func makeBox(node *Node) []string {
	content := []string{node.Label}
	if node.Detail != "" {
		content = append(content, node.Detail)
	}
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			content = append(content, tag)
		}
		if node.Status.Error != "" {
			content = append(content, truncate(node.Status.Error, 60))
		}
	}

	width := 0
	for _, line := range content {
		width = max(width, utf8.RuneCountInString(line))
	}

	lines := make([]string, 0, len(content)+2)
	lines = append(lines, "┌"+strings.Repeat("─", width+2)+"┐")
	for _, line := range content {
		pad := width - utf8.RuneCountInString(line)
		lines = append(lines, "│ "+line+strings.Repeat(" ", pad)+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width+2)+"┘")
	return lines
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
