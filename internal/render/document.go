package render

import (
	"fmt"
	"strings"

	"pricewatch/internal/model"
)

// Document renders the unbounded markdown report.
func (r *Renderer) Document(cs model.Changeset) string {
	lines := []string{"# " + r.headline(cs), ""}
	if cs.Empty() {
		lines = append(lines, "_No price changes detected._")
		return strings.Join(lines, "\n") + "\n"
	}

	for _, g := range groups {
		changes := cs.Of(g)
		if len(changes) == 0 {
			continue
		}
		lines = append(lines,
			fmt.Sprintf("## %s (%d)", g.Label(), len(changes)),
			"",
			"| Player | Team | Old | New | Δ |",
			"|---|:---:|---:|---:|---:|",
		)
		for _, c := range changes {
			lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s |",
				mdCell(c.Name), mdCell(c.Group), r.money(c.Old), r.money(c.New), signed(c.Delta)))
		}
		lines = append(lines, "")
	}
	lines = append(lines, fmt.Sprintf("_Total changes: %d (Risers: %d, Fallers: %d)_",
		cs.Total(), len(cs.Risers), len(cs.Fallers)))
	return strings.Join(lines, "\n") + "\n"
}

func mdCell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", `\|`)
}
