package diff

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"pricewatch/internal/model"
)

func ids(cs []model.Change) []int {
	out := make([]int, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestComputeExample(t *testing.T) {
	t.Parallel()
	obs := []model.Observation{
		{ID: 1, Name: "Alice", Price: 70, Group: "A"},
		{ID: 2, Name: "Bob", Price: 55, Group: "B"},
	}
	cs, err := New(Config{}).Compute(obs, map[string]int{"1": 65, "2": 55})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := []model.Change{{ID: 1, Name: "Alice", Group: "A", Old: 65, New: 70, Delta: 5, Rank: 5}}
	if !reflect.DeepEqual(cs.Risers, want) {
		t.Fatalf("Risers = %+v", cs.Risers)
	}
	if len(cs.Fallers) != 0 {
		t.Fatalf("Fallers = %+v", cs.Fallers)
	}
}

func TestComputeOneSided(t *testing.T) {
	t.Parallel()
	obs := []model.Observation{
		{ID: 1, Name: "Kept", Price: 50},
		{ID: 2, Name: "New", Price: 45}, // absent from baseline
		{ID: 3, Name: "Down", Price: 40},
	}
	prev := map[string]int{"1": 50, "3": 45, "9": 100} // 9 is delisted
	cs, err := New(Config{}).Compute(obs, prev)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(cs.Risers) != 0 {
		t.Fatalf("Risers = %+v", cs.Risers)
	}
	if !reflect.DeepEqual(ids(cs.Fallers), []int{3}) {
		t.Fatalf("Fallers = %v", ids(cs.Fallers))
	}
	if cs.Fallers[0].Delta != -5 {
		t.Fatalf("Delta = %d", cs.Fallers[0].Delta)
	}
}

func TestComputeFirstRunIsEmpty(t *testing.T) {
	t.Parallel()
	cs, err := New(Config{}).Compute([]model.Observation{{ID: 1, Name: "A", Price: 50}}, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !cs.Empty() {
		t.Fatalf("expected empty changeset, got %+v", cs)
	}
}

// Records equal exactly the ids whose price changed and that exist in the baseline;
// risers and fallers are disjoint and cover every nonzero delta.
func TestComputePartitionProperty(t *testing.T) {
	t.Parallel()
	var obs []model.Observation
	prev := map[string]int{}
	changed := map[int]bool{}
	for id := 1; id <= 60; id++ {
		price := 40 + id%17
		o := model.Observation{ID: id, Name: "p" + string(rune('a'+id%26)), Price: price}
		switch {
		case id%7 == 0: // not in baseline even though "changed"
		case id%3 == 0:
			prev[o.Key()] = price + 1 + id%4
			changed[id] = true
		case id%5 == 0:
			prev[o.Key()] = price - 1 - id%2
			changed[id] = true
		default:
			prev[o.Key()] = price
		}
		obs = append(obs, o)
	}

	cs, err := New(Config{}).Compute(obs, prev)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	got := map[int]bool{}
	for _, c := range cs.Risers {
		if c.Delta <= 0 {
			t.Fatalf("riser with delta %d", c.Delta)
		}
		got[c.ID] = true
	}
	for _, c := range cs.Fallers {
		if c.Delta >= 0 {
			t.Fatalf("faller with delta %d", c.Delta)
		}
		if got[c.ID] {
			t.Fatalf("id %d in both groups", c.ID)
		}
		got[c.ID] = true
	}
	if !reflect.DeepEqual(got, changed) {
		t.Fatalf("changed ids mismatch:\n got  %v\n want %v", got, changed)
	}
}

func TestSortTiesByCaseInsensitiveName(t *testing.T) {
	t.Parallel()
	obs := []model.Observation{
		{ID: 1, Name: "charlie", Price: 51},
		{ID: 2, Name: "Bravo", Price: 51},
		{ID: 3, Name: "alpha", Price: 51},
		{ID: 4, Name: "Zed", Price: 52},
	}
	prev := map[string]int{"1": 50, "2": 50, "3": 50, "4": 50}
	cs, err := New(Config{Rank: RankDelta}).Compute(obs, prev)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(ids(cs.Risers), []int{4, 3, 2, 1}) {
		t.Fatalf("order = %v", ids(cs.Risers))
	}
}

func TestRankPopularity(t *testing.T) {
	t.Parallel()
	obs := []model.Observation{
		{ID: 1, Name: "Big", Price: 60, Popularity: 10},
		{ID: 2, Name: "Small", Price: 51, Popularity: 400},
		{ID: 3, Name: "Mid", Price: 44, Popularity: 30},
		{ID: 4, Name: "Low", Price: 40, Popularity: 5},
	}
	prev := map[string]int{"1": 50, "2": 50, "3": 45, "4": 45}
	cs, err := New(Config{Rank: RankPopularity}).Compute(obs, prev)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(ids(cs.Risers), []int{2, 1}) {
		t.Fatalf("risers = %v", ids(cs.Risers))
	}
	if !reflect.DeepEqual(ids(cs.Fallers), []int{3, 4}) {
		t.Fatalf("fallers = %v", ids(cs.Fallers))
	}
	if !sort.SliceIsSorted(cs.Risers, func(i, j int) bool { return cs.Risers[i].Rank > cs.Risers[j].Rank }) {
		t.Fatal("risers not sorted by rank")
	}
}

func TestParseRank(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]string{"": "delta", "Delta": "delta", "popularity": "popularity"} {
		r, err := ParseRank(name)
		if err != nil {
			t.Fatalf("ParseRank(%q): %v", name, err)
		}
		if r.Name() != want {
			t.Fatalf("ParseRank(%q) = %s, want %s", name, r.Name(), want)
		}
	}
	if _, err := ParseRank("alpha"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestComputeRejectsBadFeeds(t *testing.T) {
	t.Parallel()
	e := New(Config{})
	if _, err := e.Compute(nil, nil); !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("empty feed err = %v", err)
	}

	_, err := e.Compute([]model.Observation{
		{ID: 1, Name: "ok", Price: 50},
		{ID: 1, Name: "dup", Price: 50},
		{ID: 0, Name: "zero", Price: 50},
		{ID: 4, Name: " ", Price: 50},
		{ID: 5, Name: "neg", Price: -1},
	}, map[string]int{"1": 40})
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *MalformedError", err)
	}
	if len(me.Rows) != 4 {
		t.Fatalf("bad rows = %+v", me.Rows)
	}
	if me.Rows[0].Index != 1 || me.Rows[0].Reason != "duplicate id" {
		t.Fatalf("first bad row = %+v", me.Rows[0])
	}
}
