package model

import "strconv"

// Group names one of the two change classifications.
type Group string

const (
	Risers  Group = "risers"
	Fallers Group = "fallers"
)

// Label is the display form used in headers ("Risers", "Fallers").
func (g Group) Label() string {
	switch g {
	case Risers:
		return "Risers"
	case Fallers:
		return "Fallers"
	default:
		return string(g)
	}
}

// Observation is one entity as reported by the upstream feed for a single run.
//
// Price is fixed-point tenths (55 == 5.5). Group is the scope label rendered
// next to the name (team short code for FPL). Popularity is optional and only
// used by the popularity rank strategy.
type Observation struct {
	ID         int
	Name       string
	Price      int
	Group      string
	Popularity int
}

// Key returns the string id used by snapshots.
func (o Observation) Key() string { return strconv.Itoa(o.ID) }

// Change records that one entity's price differs from the baseline.
// Delta is never zero.
type Change struct {
	ID    int
	Name  string
	Group string
	Old   int
	New   int
	Delta int
	Rank  int
}

// Changeset partitions changes into disjoint, ordered riser/faller sequences.
type Changeset struct {
	Date    string
	Risers  []Change
	Fallers []Change
}

// Empty reports whether no change was detected.
func (c Changeset) Empty() bool { return len(c.Risers) == 0 && len(c.Fallers) == 0 }

// Total is the number of change records in both groups.
func (c Changeset) Total() int { return len(c.Risers) + len(c.Fallers) }

// Of returns the ordered records of g.
func (c Changeset) Of(g Group) []Change {
	switch g {
	case Risers:
		return c.Risers
	case Fallers:
		return c.Fallers
	default:
		return nil
	}
}
