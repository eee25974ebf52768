package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"taskboard/api/internal/store"
)

// Memory is a substring-match fallback that scans in-memory board
// snapshots when Meilisearch is unavailable.
type Memory struct {
	source func() []*store.Board
}

// NewMemory creates a memory searcher. The snapshot source is injected
// after construction via SetSource to avoid a package cycle.
func NewMemory() *Memory {
	return &Memory{}
}

// SetSource installs the function that yields board snapshots to scan.
func (m *Memory) SetSource(source func() []*store.Board) {
	m.source = source
}

// Healthy reports whether the fallback has a snapshot source.
func (m *Memory) Healthy() bool {
	return m != nil && m.source != nil
}

// Search scans every board tree for case-insensitive substring matches.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	if m.source == nil {
		return []Result{}, 0, nil
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return []Result{}, 0, nil
	}

	var results []Result
	for _, board := range m.source() {
		if q.FilterBoardID != "" && board.ID != q.FilterBoardID {
			continue
		}
		for _, column := range board.Columns {
			for _, task := range column.Tasks {
				if q.FilterType == "" || q.FilterType == ResultTask {
					if taskMatches(task, needle) {
						results = append(results, Result{
							Type:    ResultTask,
							ID:      task.ID,
							Title:   task.Title,
							Snippet: snippet(task.Description),
							BoardID: board.ID,
						})
					}
				}
				if q.FilterType == "" || q.FilterType == ResultComment {
					for _, comment := range task.Comments {
						if strings.Contains(strings.ToLower(comment.Content), needle) {
							results = append(results, Result{
								Type:    ResultComment,
								ID:      comment.ID,
								Snippet: snippet(comment.Content),
								BoardID: board.ID,
								TaskID:  task.ID,
							})
						}
					}
				}
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	total := len(results)

	// Offset and limit arrive straight from query strings and may be
	// negative or past the end.
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	results = results[offset:]

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

func taskMatches(task *store.Task, needle string) bool {
	if strings.Contains(strings.ToLower(task.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(task.Description), needle) {
		return true
	}
	for _, label := range task.Labels {
		if strings.Contains(strings.ToLower(label), needle) {
			return true
		}
	}
	return false
}

func snippet(text string) string {
	const max = 160
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
