package kanban

import (
	"context"
	"errors"
	"testing"

	"taskboard/api/internal/store"
)

func TestAddTaskDefaultsAndValidation(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, nil)
	ctx := context.Background()
	column := board.Columns[0].ID

	task, err := svc.AddTask(ctx, "edith", column, TaskInput{Title: "Write changelog"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.Priority != store.PriorityMedium {
		t.Fatalf("Priority = %s, want medium default", task.Priority)
	}
	if task.CreatedBy != "edith" {
		t.Fatalf("CreatedBy = %s, want edith", task.CreatedBy)
	}

	_, err = svc.AddTask(ctx, "edith", column, TaskInput{Title: "Bad", Priority: "urgent"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "VALIDATION_ERROR" {
		t.Fatalf("err = %v, want VALIDATION_ERROR for bad priority", err)
	}
}

func TestAddTaskCapacityCeiling(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, deadlineAt(t, "2026-12-31"))
	ctx := context.Background()
	column := board.Columns[0].ID

	for i, title := range []string{"one", "two", "three"} {
		if _, err := svc.AddTask(ctx, "edith", column, TaskInput{Title: title}); err != nil {
			t.Fatalf("AddTask %d: %v", i, err)
		}
	}

	_, err := svc.AddTask(ctx, "edith", column, TaskInput{Title: "four"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "CAPACITY_EXCEEDED" {
		t.Fatalf("err = %v, want CAPACITY_EXCEEDED", err)
	}

	fresh, _ := svc.Board(ctx, board.ID)
	if got := len(fresh.Columns[0].Tasks); got != 3 {
		t.Fatalf("column holds %d tasks after rejected add, want 3", got)
	}
}

func TestAddTaskUnboundedBoardHasNoCeiling(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, nil)
	ctx := context.Background()
	column := board.Columns[0].ID

	for i := 0; i < 10; i++ {
		if _, err := svc.AddTask(ctx, "edith", column, TaskInput{Title: "task"}); err != nil {
			t.Fatalf("AddTask %d: %v", i, err)
		}
	}
}

func TestTaskDueDateAgainstDeadline(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, deadlineAt(t, "2025-05-05"))
	ctx := context.Background()
	column := board.Columns[0].ID

	_, err := svc.AddTask(ctx, "edith", column, TaskInput{Title: "Late", DueDate: deadlineAt(t, "2025-05-10")})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "DUE_DATE_VIOLATION" {
		t.Fatalf("err = %v, want DUE_DATE_VIOLATION", err)
	}

	task, err := svc.AddTask(ctx, "edith", column, TaskInput{Title: "On time", DueDate: deadlineAt(t, "2025-05-01")})
	if err != nil {
		t.Fatalf("AddTask within deadline: %v", err)
	}

	// Editing the due date past the deadline is rejected the same way.
	_, err = svc.UpdateTask(ctx, "edith", task.ID, UpdateTaskInput{DueDate: deadlineAt(t, "2025-05-10")})
	if !errors.As(err, &domain) || domain.Code != "DUE_DATE_VIOLATION" {
		t.Fatalf("err = %v, want DUE_DATE_VIOLATION on edit", err)
	}

	// A due date equal to the deadline is allowed.
	if _, err := svc.UpdateTask(ctx, "edith", task.ID, UpdateTaskInput{DueDate: deadlineAt(t, "2025-05-05")}); err != nil {
		t.Fatalf("UpdateTask at deadline: %v", err)
	}
}

func TestAddTaskRejectsUnknownAssignee(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, nil)
	ctx := context.Background()

	_, err := svc.AddTask(ctx, "edith", board.Columns[0].ID, TaskInput{Title: "Task", Assignees: []string{"ghost"}})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "UNKNOWN_ASSIGNEE" {
		t.Fatalf("err = %v, want UNKNOWN_ASSIGNEE", err)
	}

	if _, err := svc.AddTask(ctx, "edith", board.Columns[0].ID, TaskInput{Title: "Task", Assignees: []string{"vera", "alice"}}); err != nil {
		t.Fatalf("AddTask with member assignees: %v", err)
	}
}

func TestUpdateTaskPatchSemantics(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, nil)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, "edith", board.Columns[0].ID, TaskInput{
		Title:       "Original",
		Description: "before",
		Labels:      []string{"infra"},
		Assignees:   []string{"edith"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	// Nil fields stay untouched; provided fields change.
	title := "Renamed"
	updated, err := svc.UpdateTask(ctx, "edith", task.ID, UpdateTaskInput{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Title != "Renamed" || updated.Description != "before" {
		t.Fatalf("unexpected patch result: %+v", updated)
	}
	if len(updated.Labels) != 1 || len(updated.Assignees) != 1 {
		t.Fatalf("slices changed without being provided: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Fatal("UpdatedAt should be set after an edit")
	}

	// An explicitly empty slice clears the field.
	updated, err = svc.UpdateTask(ctx, "edith", task.ID, UpdateTaskInput{Labels: []string{}})
	if err != nil {
		t.Fatalf("UpdateTask clear labels: %v", err)
	}
	if len(updated.Labels) != 0 {
		t.Fatalf("labels should be cleared, got %+v", updated.Labels)
	}
}

func TestUpdateTaskPermissions(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, nil)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, "edith", board.Columns[0].ID, TaskInput{Title: "Task"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	title := "hijack"
	if _, err := svc.UpdateTask(ctx, "vera", task.ID, UpdateTaskInput{Title: &title}); !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied for viewer", err)
	}
	if err := svc.DeleteTask(ctx, "vera", task.ID); !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied for viewer delete", err)
	}
}

func TestDeleteTaskRemovesItAndItsChildren(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	board := seedBoard(t, svc, nil)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, "edith", board.Columns[0].ID, TaskInput{Title: "Task"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := svc.AddComment(ctx, "vera", task.ID, "first", nil); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	if err := svc.DeleteTask(ctx, "edith", task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	fresh, _ := svc.Board(ctx, board.ID)
	if len(fresh.Columns[0].Tasks) != 0 {
		t.Fatalf("task survived deletion: %+v", fresh.Columns[0].Tasks)
	}
	if _, err := svc.CommentThreads(task.ID); err == nil {
		t.Fatal("comment threads should be gone with the task")
	}
}
