package kanban

import (
	"context"
	"fmt"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type TaskInput struct {
	Title       string
	Description string
	Priority    store.Priority
	DueDate     *time.Time
	Assignees   []string
	Labels      []string
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *store.Priority
	DueDate     *time.Time
	// Nil slices leave the field unchanged; empty slices clear it.
	Assignees []string
	Labels    []string
}

func (s *Service) AddTask(ctx context.Context, actor, columnID string, in TaskInput) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, column := s.findColumn(columnID)
	if column == nil {
		return nil, notFound("column", columnID)
	}
	if err := s.requireAction(board, actor, rbac.ActionAddTask); err != nil {
		return nil, err
	}

	if in.Title == "" {
		return nil, validationError("VALIDATION_ERROR", "title is required")
	}
	if in.Priority == "" {
		in.Priority = store.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, validationError("VALIDATION_ERROR", "priority must be low, medium or high")
	}
	if err := checkColumnCapacity(board, column); err != nil {
		return nil, err
	}
	if err := checkDueDate(board, in.DueDate); err != nil {
		return nil, err
	}
	if err := checkAssignees(board, in.Assignees); err != nil {
		return nil, err
	}

	task := &store.Task{
		ID:          util.NewID("tsk"),
		ColumnID:    columnID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedBy:   actor,
		CreatedAt:   time.Now().UTC(),
		Assignees:   append([]string(nil), in.Assignees...),
		Labels:      append([]string(nil), in.Labels...),
	}
	column.Tasks = append(column.Tasks, task)

	if _, err := s.adapter.CreateTask(ctx, *task.Clone()); err != nil {
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	s.indexTask(board, task)
	return task.Clone(), nil
}

func (s *Service) UpdateTask(ctx context.Context, actor, taskID string, in UpdateTaskInput) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, _, task := s.findTask(taskID)
	if task == nil {
		return nil, notFound("task", taskID)
	}
	if err := s.requireAction(board, actor, rbac.ActionEditTask); err != nil {
		return nil, err
	}

	if in.Title != nil && *in.Title == "" {
		return nil, validationError("VALIDATION_ERROR", "title must not be blank")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, validationError("VALIDATION_ERROR", "priority must be low, medium or high")
	}
	if in.DueDate != nil {
		if err := checkDueDate(board, in.DueDate); err != nil {
			return nil, err
		}
	}
	if in.Assignees != nil {
		if err := checkAssignees(board, in.Assignees); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if in.Assignees != nil {
		task.Assignees = append([]string(nil), in.Assignees...)
	}
	if in.Labels != nil {
		task.Labels = append([]string(nil), in.Labels...)
	}
	task.UpdatedAt = &now

	if _, err := s.adapter.UpdateTask(ctx, *task.Clone()); err != nil {
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	s.indexTask(board, task)
	return task.Clone(), nil
}

func (s *Service) DeleteTask(ctx context.Context, actor, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, column, task := s.findTask(taskID)
	if task == nil {
		return notFound("task", taskID)
	}
	if err := s.requireAction(board, actor, rbac.ActionDeleteTask); err != nil {
		return err
	}

	for i, candidate := range column.Tasks {
		if candidate.ID == taskID {
			column.Tasks = append(column.Tasks[:i], column.Tasks[i+1:]...)
			break
		}
	}

	if err := s.adapter.DeleteTask(ctx, taskID); err != nil {
		return s.reconcile(ctx, board.ID, err)
	}
	s.dropTaskArtifacts(ctx, task)
	s.settled(ctx, board)
	return nil
}

func checkColumnCapacity(board *store.Board, column *store.Column) error {
	if board.TaskLimit <= 0 {
		return nil
	}
	if len(column.Tasks) >= board.TaskLimit {
		return validationError("CAPACITY_EXCEEDED",
			fmt.Sprintf("column %q is at its limit of %d tasks", column.Title, board.TaskLimit))
	}
	return nil
}

func checkDueDate(board *store.Board, dueDate *time.Time) error {
	if dueDate == nil || board.Deadline == nil {
		return nil
	}
	if dueDate.After(*board.Deadline) {
		return validationError("DUE_DATE_VIOLATION",
			fmt.Sprintf("due date %s is after the board deadline %s",
				dueDate.Format("2006-01-02"), board.Deadline.Format("2006-01-02")))
	}
	return nil
}

func checkAssignees(board *store.Board, assignees []string) error {
	for _, userID := range assignees {
		if !board.HasMember(userID) {
			return validationError("UNKNOWN_ASSIGNEE", "assignee "+userID+" is not a board member")
		}
	}
	return nil
}

func (s *Service) indexTask(board *store.Board, task *store.Task) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexTask(search.TaskRecordFrom(board, task))
}
