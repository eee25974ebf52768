package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by adapter reads for missing entities.
var ErrNotFound = errors.New("not found")

// Adapter is the persistence boundary the board engine commits through.
// Every call returns the fully updated entity so the caller can reconcile
// its local state without re-deriving it; GetBoard returns the whole tree
// (columns, tasks, comments, attachments, members) and is the recovery path
// after a failed commit.
type Adapter interface {
	CreateBoard(ctx context.Context, board Board) (Board, error)
	GetBoard(ctx context.Context, id string) (Board, error)
	UpdateBoard(ctx context.Context, id string, fields BoardFields) (Board, error)
	DeleteBoard(ctx context.Context, id string) error
	ListBoards(ctx context.Context) ([]Board, error)

	CreateColumn(ctx context.Context, column Column) (Column, error)
	UpdateColumn(ctx context.Context, id, title string) (Column, error)
	DeleteColumn(ctx context.Context, id string) error
	ListColumnsByBoard(ctx context.Context, boardID string) ([]Column, error)

	CreateTask(ctx context.Context, task Task) (Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	MoveTask(ctx context.Context, id, destColumnID string) (Task, error)

	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	UpdateComment(ctx context.Context, id, content string) (Comment, error)
	DeleteComment(ctx context.Context, id string) error

	CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	InviteMember(ctx context.Context, boardID, email, role string) (Member, error)
	UpdateMemberRole(ctx context.Context, boardID, userID, role string) error
	RemoveMember(ctx context.Context, boardID, userID string) error

	Ping(ctx context.Context) error
}
