package diff

import (
	"fmt"
	"strings"

	"pricewatch/internal/model"
)

// RowError describes one rejected observation.
type RowError struct {
	Index  int
	ID     int
	Reason string
}

// MalformedError lists every invalid observation of a feed.
type MalformedError struct {
	Rows []RowError
}

func (e *MalformedError) Error() string {
	if len(e.Rows) == 0 {
		return "malformed feed"
	}
	first := e.Rows[0]
	if len(e.Rows) == 1 {
		return fmt.Sprintf("malformed feed: row %d (id %d): %s", first.Index, first.ID, first.Reason)
	}
	return fmt.Sprintf("malformed feed: %d invalid rows, first at row %d (id %d): %s",
		len(e.Rows), first.Index, first.ID, first.Reason)
}

// Validate checks that obs is non-empty with unique positive ids, names and
// non-negative prices.
func Validate(obs []model.Observation) error {
	if len(obs) == 0 {
		return ErrEmptyFeed
	}
	var bad []RowError
	seen := make(map[int]struct{}, len(obs))
	for i, o := range obs {
		switch {
		case o.ID <= 0:
			bad = append(bad, RowError{Index: i, ID: o.ID, Reason: "id must be positive"})
		case strings.TrimSpace(o.Name) == "":
			bad = append(bad, RowError{Index: i, ID: o.ID, Reason: "name is empty"})
		case o.Price < 0:
			bad = append(bad, RowError{Index: i, ID: o.ID, Reason: "price is negative"})
		default:
			if _, dup := seen[o.ID]; dup {
				bad = append(bad, RowError{Index: i, ID: o.ID, Reason: "duplicate id"})
			}
		}
		seen[o.ID] = struct{}{}
	}
	if len(bad) > 0 {
		return &MalformedError{Rows: bad}
	}
	return nil
}
