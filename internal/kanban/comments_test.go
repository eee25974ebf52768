package kanban

import (
	"context"
	"errors"
	"testing"

	"taskboard/api/internal/store"
)

func seedTask(t *testing.T, svc *Service) (*store.Board, *store.Task) {
	t.Helper()
	board := seedBoard(t, svc, nil)
	task, err := svc.AddTask(context.Background(), "edith", board.Columns[0].ID, TaskInput{Title: "Discussed"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	return board, task
}

func TestAddCommentAndReply(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	top, err := svc.AddComment(ctx, "vera", task.ID, "looks wrong", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if top.Author != "vera" || top.ParentID != nil {
		t.Fatalf("unexpected top-level comment: %+v", top)
	}

	reply, err := svc.AddComment(ctx, "edith", task.ID, "fixed now", &top.ID)
	if err != nil {
		t.Fatalf("AddComment reply: %v", err)
	}
	if reply.ParentID == nil || *reply.ParentID != top.ID {
		t.Fatalf("reply not parented to %s: %+v", top.ID, reply)
	}

	threads, err := svc.CommentThreads(task.ID)
	if err != nil {
		t.Fatalf("CommentThreads: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("len(threads) = %d, want 1", len(threads))
	}
	if threads[0].Comment.ID != top.ID || len(threads[0].Replies) != 1 || threads[0].Replies[0].ID != reply.ID {
		t.Fatalf("unexpected thread projection: %+v", threads[0])
	}
}

func TestAddCommentRejectsReplyToReply(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	top, err := svc.AddComment(ctx, "vera", task.ID, "top", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	reply, err := svc.AddComment(ctx, "edith", task.ID, "reply", &top.ID)
	if err != nil {
		t.Fatalf("AddComment reply: %v", err)
	}

	_, err = svc.AddComment(ctx, "alice", task.ID, "reply to reply", &reply.ID)
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "INVALID_PARENT_COMMENT" {
		t.Fatalf("err = %v, want INVALID_PARENT_COMMENT", err)
	}
}

func TestAddCommentRejectsForeignParent(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board, task := seedTask(t, svc)
	ctx := context.Background()

	other, err := svc.AddTask(ctx, "edith", board.Columns[1].ID, TaskInput{Title: "Other"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	foreign, err := svc.AddComment(ctx, "vera", other.ID, "elsewhere", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	_, err = svc.AddComment(ctx, "vera", task.ID, "orphan", &foreign.ID)
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "INVALID_PARENT_COMMENT" {
		t.Fatalf("err = %v, want INVALID_PARENT_COMMENT for a parent on another task", err)
	}
}

func TestViewerCanComment(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)

	if _, err := svc.AddComment(context.Background(), "vera", task.ID, "viewers may speak", nil); err != nil {
		t.Fatalf("AddComment as viewer: %v", err)
	}
	if _, err := svc.AddComment(context.Background(), "stranger", task.ID, "outsiders may not", nil); !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied", err)
	}
}

func TestCommentAuthorOrCapabilityMayEdit(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	// A viewer's comment: the author may edit it even without the
	// edit-comment capability.
	comment, err := svc.AddComment(ctx, "vera", task.ID, "typo hear", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := svc.UpdateComment(ctx, "vera", comment.ID, "typo here"); err != nil {
		t.Fatalf("author edit: %v", err)
	}

	// An editor holds the capability and may edit someone else's comment.
	if _, err := svc.UpdateComment(ctx, "edith", comment.ID, "edited by edith"); err != nil {
		t.Fatalf("capability edit: %v", err)
	}

	// Another viewer is neither author nor capability holder.
	second, err := svc.AddComment(ctx, "edith", task.ID, "mine", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := svc.UpdateComment(ctx, "vera", second.ID, "hijacked"); !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied", err)
	}
}

func TestDeleteCommentTakesRepliesWithIt(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	top, err := svc.AddComment(ctx, "vera", task.ID, "top", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := svc.AddComment(ctx, "edith", task.ID, "reply one", &top.ID); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := svc.AddComment(ctx, "alice", task.ID, "reply two", &top.ID); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	other, err := svc.AddComment(ctx, "vera", task.ID, "unrelated", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	if err := svc.DeleteComment(ctx, "vera", top.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}

	threads, err := svc.CommentThreads(task.ID)
	if err != nil {
		t.Fatalf("CommentThreads: %v", err)
	}
	if len(threads) != 1 || threads[0].Comment.ID != other.ID {
		t.Fatalf("unexpected remaining threads: %+v", threads)
	}
	if len(threads[0].Replies) != 0 {
		t.Fatalf("unrelated thread picked up replies: %+v", threads[0].Replies)
	}
}

func TestDeleteCommentDualSufficiency(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	comment, err := svc.AddComment(ctx, "edith", task.ID, "careless words", nil)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := svc.DeleteComment(ctx, "vera", comment.ID); !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied for non-author viewer", err)
	}
	if err := svc.DeleteComment(ctx, "edith", comment.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}
