package search

import (
	"strings"

	"taskboard/api/internal/store"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask    ResultType = "task"
	ResultComment ResultType = "comment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	BoardID string     `json:"boardId"`
	TaskID  string     `json:"taskId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterBoardID string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexTask(t TaskRecord) error
	IndexComment(c CommentRecord) error
	DeleteTask(id string) error
	DeleteComment(id string) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Priority    string   `json:"priority"`
	BoardID     string   `json:"boardId"`
	BoardTitle  string   `json:"boardTitle"`
	ColumnID    string   `json:"columnId"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  string `json:"author"`
	TaskID  string `json:"taskId"`
	BoardID string `json:"boardId"`
}

func TaskRecordFrom(board *store.Board, task *store.Task) TaskRecord {
	return TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Labels:      append([]string(nil), task.Labels...),
		Priority:    string(task.Priority),
		BoardID:     board.ID,
		BoardTitle:  board.Title,
		ColumnID:    task.ColumnID,
	}
}

func CommentRecordFrom(board *store.Board, task *store.Task, comment *store.Comment) CommentRecord {
	return CommentRecord{
		ID:      comment.ID,
		Content: comment.Content,
		Author:  comment.Author,
		TaskID:  task.ID,
		BoardID: board.ID,
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
