package evaluation

import (
	"testing"

	"github.com/knowledgebench/bench/engine/domain"
)

func src(doc, ref string) domain.SourceKey {
	return domain.SourceKey{DocumentID: doc, SourceRef: ref}
}

func TestStrictSourceMatch(t *testing.T) {
	tests := []struct {
		name      string
		expected  []domain.SourceKey
		retrieved []domain.SourceKey
		hits      int
		total     int
	}{
		{
			name:      "all found",
			expected:  []domain.SourceKey{src("d1", "p1"), src("d2", "p2")},
			retrieved: []domain.SourceKey{src("d2", "p2"), src("d1", "p1"), src("d3", "p3")},
			hits:      2, total: 2,
		},
		{
			name:      "partial",
			expected:  []domain.SourceKey{src("d1", "p1"), src("d2", "p2")},
			retrieved: []domain.SourceKey{src("d1", "p1")},
			hits:      1, total: 2,
		},
		{
			name:      "ref must match too",
			expected:  []domain.SourceKey{src("d1", "p1")},
			retrieved: []domain.SourceKey{src("d1", "p2")},
			hits:      0, total: 1,
		},
		{
			name:      "duplicate retrieved counts once per expected",
			expected:  []domain.SourceKey{src("d1", "p1")},
			retrieved: []domain.SourceKey{src("d1", "p1"), src("d1", "p1")},
			hits:      1, total: 1,
		},
		{
			name:  "empty expected",
			hits:  0,
			total: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hits, total := StrictSourceMatch(tc.expected, tc.retrieved)
			if hits != tc.hits || total != tc.total {
				t.Errorf("got (%d, %d), want (%d, %d)", hits, total, tc.hits, tc.total)
			}
		})
	}
}

func TestRecallAtK(t *testing.T) {
	expected := []domain.SourceKey{src("d1", "p1"), src("d2", "p2")}

	// Both expected in top k.
	got := RecallAtK(expected, []domain.SourceKey{src("d1", "p1"), src("d2", "p2")}, 5)
	if got != 1.0 {
		t.Errorf("full recall = %v, want 1.0", got)
	}

	// Second expected sits past k.
	got = RecallAtK(expected, []domain.SourceKey{src("d1", "p1"), src("dx", "px"), src("d2", "p2")}, 2)
	if got != 0.5 {
		t.Errorf("truncated recall = %v, want 0.5", got)
	}

	// No expected sources.
	if RecallAtK(nil, []domain.SourceKey{src("d1", "p1")}, 5) != 0 {
		t.Error("empty expected must score 0")
	}
}

func TestMRR(t *testing.T) {
	expected := []domain.SourceKey{src("d1", "p1")}

	tests := []struct {
		name      string
		retrieved []domain.SourceKey
		want      float64
	}{
		{"first", []domain.SourceKey{src("d1", "p1")}, 1.0},
		{"second", []domain.SourceKey{src("dx", "px"), src("d1", "p1")}, 0.5},
		{"fourth", []domain.SourceKey{src("a", "a"), src("b", "b"), src("c", "c"), src("d1", "p1")}, 0.25},
		{"absent", []domain.SourceKey{src("dx", "px")}, 0},
		{"empty", nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MRR(expected, tc.retrieved); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMRR_AnyExpectedStopsSearch(t *testing.T) {
	// The first retrieved hit against any expected source sets the rank.
	expected := []domain.SourceKey{src("d1", "p1"), src("d2", "p2")}
	retrieved := []domain.SourceKey{src("d2", "p2"), src("d1", "p1")}
	if got := MRR(expected, retrieved); got != 1.0 {
		t.Errorf("got %v, want 1.0", got)
	}
}
