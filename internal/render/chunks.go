package render

import (
	"fmt"
	"strings"

	"pricewatch/internal/model"
	"pricewatch/pkg/tgui"
)

// Chunk is one post of a thread. Index starts at 1 within its group.
type Chunk struct {
	Group   model.Group
	Index   int
	Header  string
	Bullets []string
}

// Text is the post body: header line followed by one bullet per line.
func (c Chunk) Text() string {
	return joinChunk(c.Header, c.Bullets)
}

func joinChunk(header string, bullets []string) string {
	if len(bullets) == 0 {
		return header
	}
	return header + "\n" + strings.Join(bullets, "\n")
}

// Chunks renders the per-group thread sequences. Groups without changes are omitted.
func (r *Renderer) Chunks(cs model.Changeset) (map[model.Group][]Chunk, error) {
	out := make(map[model.Group][]Chunk, len(groups))
	for _, g := range groups {
		chunks, err := r.ThreadChunks(cs, g)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g, err)
		}
		if len(chunks) > 0 {
			out[g] = chunks
		}
	}
	return out, nil
}

// ThreadChunks packs the bullets of group g into chunks of at most ChunkBudget runes.
//
// The first chunk opens with the full header (title, date, count); later ones
// with "<Group> (continued)". Bullets are added greedily in order; a bullet that
// would overflow opens the next chunk. When the first bullet fits a chunk only
// under the shorter continuation header, the thread opens with that header so
// no chunk is emitted without bullets.
//
// A bullet is oversize when it cannot fit even under the continuation header.
// The oversize policy then applies: truncated and emitted alone, or rejected.
func (r *Renderer) ThreadChunks(cs model.Changeset, g model.Group) ([]Chunk, error) {
	changes := cs.Of(g)
	if len(changes) == 0 {
		return nil, nil
	}
	budget := r.cfg.ChunkBudget
	first := r.firstHeader(cs, g)
	cont := fmt.Sprintf("%s %s (continued)", groupIcon(g), g.Label())
	// a header must leave room for the newline and at least an ellipsis
	if tgui.Len(first)+2 > budget || tgui.Len(cont)+2 > budget {
		return nil, ErrHeaderTooLong
	}

	var (
		out []Chunk
		cur = Chunk{Group: g, Index: 1, Header: first}
	)
	fits := func(header string, bullets []string, bullet string) bool {
		return tgui.Len(joinChunk(header, append(bullets[:len(bullets):len(bullets)], bullet))) <= budget
	}
	closeChunk := func() {
		out = append(out, cur)
		cur = Chunk{Group: g, Index: len(out) + 1, Header: cont}
	}

	for _, c := range changes {
		bullet := r.chunkBullet(c)
		if fits(cur.Header, cur.Bullets, bullet) {
			cur.Bullets = append(cur.Bullets, bullet)
			continue
		}
		if len(cur.Bullets) > 0 {
			closeChunk()
		} else if cur.Header != cont && fits(cont, nil, bullet) {
			cur.Header = cont
		}
		if fits(cur.Header, nil, bullet) {
			cur.Bullets = append(cur.Bullets, bullet)
			continue
		}

		if r.cfg.Oversize == OversizeReject {
			return nil, fmt.Errorf("%w: %q (%d runes, budget %d)", ErrBulletTooLong, bullet, tgui.Len(bullet), budget)
		}
		room := budget - tgui.Len(cur.Header) - 1 // newline after the header
		cur.Bullets = append(cur.Bullets, tgui.TruncRunes(bullet, room))
		closeChunk()
	}
	if len(cur.Bullets) > 0 {
		out = append(out, cur)
	}
	return out, nil
}

func (r *Renderer) firstHeader(cs model.Changeset, g model.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", groupIcon(g), r.cfg.Title)
	if cs.Date != "" {
		b.WriteString(" — ")
		b.WriteString(cs.Date)
	}
	fmt.Fprintf(&b, "\n%s (%d)", g.Label(), len(cs.Of(g)))
	return b.String()
}

func (r *Renderer) chunkBullet(c model.Change) string {
	return fmt.Sprintf("• %s%s %s → %s", c.Name, scope(c.Group), signed(c.Delta), r.money(c.New))
}
