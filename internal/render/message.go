package render

import (
	"fmt"
	"strings"

	"pricewatch/internal/model"
	"pricewatch/pkg/tgui"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineHeader
	lineBullet
)

type line struct {
	kind lineKind
	text string
}

// Message renders the single bounded chat message (Telegram HTML).
//
// When the full text exceeds the message budget, bullets are removed from the
// tail until it fits together with a "(+N more)" trailer, where N is the number
// of removed bullets. A header never remains without a bullet below it.
func (r *Renderer) Message(cs model.Changeset) string {
	title := tgui.B(r.headline(cs)).String()
	if cs.Empty() {
		if out := title + "\n\nNo changes."; tgui.Len(out) <= r.cfg.MessageBudget {
			return out
		}
		return tgui.TruncRunes("No changes.", r.cfg.MessageBudget)
	}

	lines := r.messageLines(cs)
	lines, hidden := trimTail(lines, func(ls []line, hidden int) int {
		return tgui.Len(assemble(title, ls, hidden))
	}, r.cfg.MessageBudget)
	if out := assemble(title, lines, hidden); tgui.Len(out) <= r.cfg.MessageBudget {
		return out
	}
	// The title alone overflows; the trailer still reports every bullet.
	return tgui.TruncRunes(trailer(hidden), r.cfg.MessageBudget)
}

func trailer(hidden int) string {
	return fmt.Sprintf("(+%d more)", hidden)
}

func (r *Renderer) messageLines(cs model.Changeset) []line {
	var lines []line
	for _, g := range groups {
		changes := cs.Of(g)
		if len(changes) == 0 {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, line{kind: lineBlank})
		}
		lines = append(lines, line{kind: lineHeader, text: fmt.Sprintf("%s %s (%d)", groupIcon(g), tgui.B(g.Label()), len(changes))})
		for _, c := range changes {
			lines = append(lines, line{kind: lineBullet, text: r.messageBullet(c)})
		}
	}
	return lines
}

func (r *Renderer) messageBullet(c model.Change) string {
	return fmt.Sprintf("• %s%s: %s → %s", tgui.B(c.Name), tgui.Esc(scope(c.Group)), signed(c.Delta), r.money(c.New))
}

// trimTail drops lines from the end while size(lines, hidden) > budget.
// Each removed bullet increments hidden. Headers and separators left dangling
// at the tail are removed with it, so no header is left without bullets.
// The loop always terminates: every iteration removes at least one line.
func trimTail(lines []line, size func([]line, int) int, budget int) ([]line, int) {
	hidden := 0
	for len(lines) > 0 && size(lines, hidden) > budget {
		last := lines[len(lines)-1]
		lines = lines[:len(lines)-1]
		if last.kind == lineBullet {
			hidden++
		}
		for len(lines) > 0 && lines[len(lines)-1].kind != lineBullet {
			lines = lines[:len(lines)-1]
		}
	}
	return lines, hidden
}

func assemble(title string, lines []line, hidden int) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString("\n")
		b.WriteString(l.text)
	}
	if hidden > 0 {
		b.WriteString("\n\n")
		b.WriteString(trailer(hidden))
	}
	return b.String()
}
