package store

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Board struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
	// Deadline is the due date of the enclosing assignment or project end
	// date. Tasks on the board may not be due after it.
	Deadline *time.Time `json:"deadline,omitempty"`
	// TaskLimit caps the task count of every column. Zero means unbounded.
	TaskLimit int        `json:"taskLimit"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Columns   []*Column  `json:"columns"`
	Members   []Member   `json:"members"`
}

type Member struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type Column struct {
	ID      string  `json:"id"`
	BoardID string  `json:"boardId"`
	Title   string  `json:"title"`
	Tasks   []*Task `json:"tasks"`
}

type Task struct {
	ID          string        `json:"id"`
	ColumnID    string        `json:"columnId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    Priority      `json:"priority"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   *time.Time    `json:"updatedAt,omitempty"`
	Assignees   []string      `json:"assignees"`
	Labels      []string      `json:"labels"`
	Comments    []*Comment    `json:"comments"`
	Attachments []*Attachment `json:"attachments"`
}

type Comment struct {
	ID      string `json:"id"`
	TaskID  string `json:"taskId"`
	Author  string `json:"author"`
	Content string `json:"content"`
	// ParentID, when set, references a top-level comment on the same task.
	ParentID  *string    `json:"parentId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Attachment struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	UploadedBy  string `json:"uploadedBy"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	// Ref is the blob reference: a data URL in memory mode or an object key
	// when a bucket store is configured.
	Ref        string    `json:"ref,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// BoardFields carries a partial board update. Nil fields are unchanged.
type BoardFields struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	TaskLimit   *int
}

// Clone returns a deep copy of the board tree. Read accessors hand these out
// so callers never hold references into the canonical collection.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Members = append([]Member(nil), b.Members...)
	clone.Columns = make([]*Column, len(b.Columns))
	for i, column := range b.Columns {
		clone.Columns[i] = column.Clone()
	}
	return &clone
}

func (c *Column) Clone() *Column {
	clone := *c
	clone.Tasks = make([]*Task, len(c.Tasks))
	for i, task := range c.Tasks {
		clone.Tasks[i] = task.Clone()
	}
	return &clone
}

func (t *Task) Clone() *Task {
	clone := *t
	clone.Assignees = append([]string(nil), t.Assignees...)
	clone.Labels = append([]string(nil), t.Labels...)
	clone.Comments = make([]*Comment, len(t.Comments))
	for i, comment := range t.Comments {
		copied := *comment
		clone.Comments[i] = &copied
	}
	clone.Attachments = make([]*Attachment, len(t.Attachments))
	for i, attachment := range t.Attachments {
		copied := *attachment
		clone.Attachments[i] = &copied
	}
	return &clone
}

// RoleOf resolves a user's role on the board. The creator is always an
// admin no matter what the membership record says; users without a
// membership record resolve to "none".
func (b *Board) RoleOf(userID string) string {
	if userID == b.CreatedBy {
		return "admin"
	}
	for _, member := range b.Members {
		if member.UserID == userID {
			return member.Role
		}
	}
	return "none"
}

func (b *Board) HasMember(userID string) bool {
	if userID == b.CreatedBy {
		return true
	}
	for _, member := range b.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}
