package kanban

import (
	"context"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// CommentThread is the read-time projection of a task's discussion: a
// top-level comment with its replies in creation order. The grouping is
// derived on demand, not stored.
type CommentThread struct {
	Comment store.Comment
	Replies []store.Comment
}

func (s *Service) AddComment(ctx context.Context, actor, taskID, content string, parentID *string) (*store.Comment, error) {
	if content == "" {
		return nil, validationError("VALIDATION_ERROR", "content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, _, task := s.findTask(taskID)
	if task == nil {
		return nil, notFound("task", taskID)
	}
	if err := s.requireAction(board, actor, rbac.ActionAddComment); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent := findTaskComment(task, *parentID)
		if parent == nil {
			return nil, validationError("INVALID_PARENT_COMMENT", "parent comment does not exist on this task")
		}
		// Replies to replies are rejected: nesting depth is exactly one.
		if parent.ParentID != nil {
			return nil, validationError("INVALID_PARENT_COMMENT", "cannot reply to a reply")
		}
	}

	comment := &store.Comment{
		ID:        util.NewID("cmt"),
		TaskID:    taskID,
		Author:    actor,
		Content:   content,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	task.Comments = append(task.Comments, comment)

	if _, err := s.adapter.CreateComment(ctx, *comment); err != nil {
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	s.indexComment(board, task, comment)
	copied := *comment
	return &copied, nil
}

func (s *Service) UpdateComment(ctx context.Context, actor, commentID, content string) (*store.Comment, error) {
	if content == "" {
		return nil, validationError("VALIDATION_ERROR", "content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, task, comment := s.findComment(commentID)
	if comment == nil {
		return nil, notFound("comment", commentID)
	}
	if err := s.requireOwnershipOrAction(board, actor, comment.Author, rbac.ActionEditComment); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment.Content = content
	comment.UpdatedAt = &now

	if _, err := s.adapter.UpdateComment(ctx, commentID, content); err != nil {
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	s.indexComment(board, task, comment)
	copied := *comment
	return &copied, nil
}

// DeleteComment removes a comment. Deleting a top-level comment takes its
// replies with it.
func (s *Service) DeleteComment(ctx context.Context, actor, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, task, comment := s.findComment(commentID)
	if comment == nil {
		return notFound("comment", commentID)
	}
	if err := s.requireOwnershipOrAction(board, actor, comment.Author, rbac.ActionDeleteComment); err != nil {
		return err
	}

	removed := make([]string, 0, 1)
	kept := task.Comments[:0]
	for _, candidate := range task.Comments {
		if candidate.ID == commentID || (candidate.ParentID != nil && *candidate.ParentID == commentID) {
			removed = append(removed, candidate.ID)
			continue
		}
		kept = append(kept, candidate)
	}
	task.Comments = kept

	if err := s.adapter.DeleteComment(ctx, commentID); err != nil {
		return s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	if s.searcher != nil {
		for _, id := range removed {
			s.searcher.DeleteComment(id)
		}
	}
	return nil
}

// CommentThreads enumerates a task's top-level comments in creation order,
// each carrying its replies in creation order.
func (s *Service) CommentThreads(taskID string) ([]CommentThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, task := s.findTask(taskID)
	if task == nil {
		return nil, notFound("task", taskID)
	}

	threads := make([]CommentThread, 0)
	for _, comment := range task.Comments {
		if comment.ParentID != nil {
			continue
		}
		thread := CommentThread{Comment: *comment}
		for _, candidate := range task.Comments {
			if candidate.ParentID != nil && *candidate.ParentID == comment.ID {
				thread.Replies = append(thread.Replies, *candidate)
			}
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// requireOwnershipOrAction implements the dual-sufficiency rule shared by
// comment and attachment mutation: authorship and role capability are each
// sufficient, neither is necessary.
func (s *Service) requireOwnershipOrAction(board *store.Board, actor, owner string, action rbac.Action) error {
	if actor == owner {
		return nil
	}
	return s.requireAction(board, actor, action)
}

func findTaskComment(task *store.Task, commentID string) *store.Comment {
	for _, comment := range task.Comments {
		if comment.ID == commentID {
			return comment
		}
	}
	return nil
}

func (s *Service) indexComment(board *store.Board, task *store.Task, comment *store.Comment) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexComment(search.CommentRecordFrom(board, task, comment))
}
