// Package diff compares current observations with the previous snapshot and
// produces ranked riser/faller sequences.
package diff

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pricewatch/internal/model"
)

var ErrEmptyFeed = errors.New("feed returned no entities")

// RankStrategy computes the ordering key of a change; higher sorts first.
type RankStrategy interface {
	Name() string
	Rank(o model.Observation, delta int) int
}

type rankDelta struct{}

func (rankDelta) Name() string { return "delta" }
func (rankDelta) Rank(_ model.Observation, delta int) int {
	if delta < 0 {
		return -delta
	}
	return delta
}

type rankPopularity struct{}

func (rankPopularity) Name() string                        { return "popularity" }
func (rankPopularity) Rank(o model.Observation, _ int) int { return o.Popularity }

var (
	// RankDelta orders by absolute price move.
	RankDelta RankStrategy = rankDelta{}
	// RankPopularity orders by the feed's popularity metric.
	RankPopularity RankStrategy = rankPopularity{}
)

// ParseRank maps a config name to a strategy. Empty means delta.
func ParseRank(name string) (RankStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "delta":
		return RankDelta, nil
	case "popularity":
		return RankPopularity, nil
	default:
		return nil, fmt.Errorf("unknown rank strategy %q", name)
	}
}

type Config struct {
	Rank RankStrategy
}

// Engine is stateless apart from its config and safe for concurrent use.
type Engine struct {
	rank RankStrategy
}

func New(cfg Config) *Engine {
	r := cfg.Rank
	if r == nil {
		r = RankDelta
	}
	return &Engine{rank: r}
}

func (e *Engine) Strategy() RankStrategy { return e.rank }

// Compute diffs obs against prev (entity id -> price).
//
// The diff is driven by current observations: entities missing from prev
// produce no record, entities only in prev (delisted) are ignored.
// Invalid input is rejected as a whole with ErrEmptyFeed or *MalformedError.
func (e *Engine) Compute(obs []model.Observation, prev map[string]int) (model.Changeset, error) {
	if err := Validate(obs); err != nil {
		return model.Changeset{}, err
	}

	var cs model.Changeset
	for _, o := range obs {
		old, ok := prev[o.Key()]
		if !ok || old == o.Price {
			continue
		}
		delta := o.Price - old
		c := model.Change{
			ID:    o.ID,
			Name:  o.Name,
			Group: o.Group,
			Old:   old,
			New:   o.Price,
			Delta: delta,
			Rank:  e.rank.Rank(o, delta),
		}
		if delta > 0 {
			cs.Risers = append(cs.Risers, c)
		} else {
			cs.Fallers = append(cs.Fallers, c)
		}
	}
	sortChanges(cs.Risers)
	sortChanges(cs.Fallers)
	return cs, nil
}

// sortChanges orders by rank desc, then case-insensitive name, then id.
func sortChanges(cs []model.Change) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}
