package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"taskboard/api/internal/store"
)

func snapshotSource() []*store.Board {
	return []*store.Board{
		{
			ID:    "board_1",
			Title: "Release",
			Columns: []*store.Column{
				{
					ID:      "col_1",
					BoardID: "board_1",
					Tasks: []*store.Task{
						{
							ID:          "task_1",
							ColumnID:    "col_1",
							Title:       "Fix login crash",
							Description: "Crash on empty password",
							Labels:      []string{"bug"},
							Comments: []*store.Comment{
								{ID: "comment_1", TaskID: "task_1", Content: "reproduced on staging"},
							},
						},
						{
							ID:       "task_2",
							ColumnID: "col_1",
							Title:    "Write docs",
							Labels:   []string{"docs"},
						},
					},
				},
			},
		},
		{
			ID:    "board_2",
			Title: "Backlog",
			Columns: []*store.Column{
				{
					ID:      "col_2",
					BoardID: "board_2",
					Tasks: []*store.Task{
						{ID: "task_3", ColumnID: "col_2", Title: "Login page redesign"},
					},
				},
			},
		},
	}
}

func newTestMemory() *Memory {
	m := NewMemory()
	m.SetSource(snapshotSource)
	return m
}

func TestMemorySearchMatchesTitleDescriptionAndLabels(t *testing.T) {
	m := newTestMemory()

	tests := []struct {
		name    string
		text    string
		wantIDs []string
	}{
		{"title match", "login", []string{"task_1", "task_3"}},
		{"description match", "empty password", []string{"task_1"}},
		{"label match", "docs", []string{"task_2"}},
		{"case insensitive", "LOGIN", []string{"task_1", "task_3"}},
		{"no match", "kubernetes", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, total, err := m.Search(Query{Text: tc.text, FilterType: ResultTask})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if total != len(tc.wantIDs) {
				t.Fatalf("total = %d, want %d", total, len(tc.wantIDs))
			}
			for i, want := range tc.wantIDs {
				if results[i].ID != want {
					t.Errorf("results[%d].ID = %s, want %s", i, results[i].ID, want)
				}
			}
		})
	}
}

func TestMemorySearchFindsComments(t *testing.T) {
	m := newTestMemory()

	results, total, err := m.Search(Query{Text: "staging", FilterType: ResultComment})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if results[0].Type != ResultComment || results[0].ID != "comment_1" {
		t.Errorf("got %+v, want comment_1", results[0])
	}
	if results[0].TaskID != "task_1" {
		t.Errorf("TaskID = %s, want task_1", results[0].TaskID)
	}
}

func TestMemorySearchBoardFilter(t *testing.T) {
	m := newTestMemory()

	results, total, err := m.Search(Query{Text: "login", FilterBoardID: "board_2"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || results[0].ID != "task_3" {
		t.Fatalf("got total=%d results=%+v, want only task_3", total, results)
	}
}

func TestMemorySearchPagination(t *testing.T) {
	m := newTestMemory()

	results, total, err := m.Search(Query{Text: "login", Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}

	results, _, err = m.Search(Query{Text: "login", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID == "task_1" {
		t.Fatalf("offset page returned %+v", results)
	}
}

func TestMemorySearchNegativePagingClamped(t *testing.T) {
	m := newTestMemory()

	for _, q := range []Query{
		{Text: "login", Offset: -1},
		{Text: "login", Limit: -1},
		{Text: "login", Offset: -5, Limit: -5},
	} {
		results, total, err := m.Search(q)
		if err != nil {
			t.Fatalf("search %+v: %v", q, err)
		}
		if total != 2 {
			t.Fatalf("search %+v: total = %d, want 2", q, total)
		}
		if len(results) != 2 {
			t.Fatalf("search %+v: len(results) = %d, want 2", q, len(results))
		}
	}
}

func TestSnippetKeepsRuneBoundaries(t *testing.T) {
	// Byte 160 falls inside the two-byte rune, so a naive byte cut would
	// split it.
	long := strings.Repeat("a", 159) + "éclair"
	got := snippet(long)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet produced invalid UTF-8: %q", got)
	}
	if len(got) > 160 {
		t.Fatalf("snippet length = %d, want <= 160", len(got))
	}
	if got != strings.Repeat("a", 159) {
		t.Fatalf("snippet = %q, want the cut to land before the split rune", got)
	}
}

func TestMemorySearchBlankQuery(t *testing.T) {
	m := newTestMemory()

	results, total, err := m.Search(Query{Text: "   "})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Fatalf("blank query returned %d results", len(results))
	}
}

func TestMemorySearchNoSource(t *testing.T) {
	m := NewMemory()
	if m.Healthy() {
		t.Fatal("memory searcher without source should not report healthy")
	}
	results, total, err := m.Search(Query{Text: "login"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Fatal("expected empty results without a source")
	}
}
