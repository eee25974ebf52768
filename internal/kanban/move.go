package kanban

import (
	"context"

	"taskboard/api/internal/rbac"
)

// MoveTask transfers a task between two columns of the same board as a
// remove-from-source/add-to-destination pair, never a copy. The local apply
// is optimistic: it happens before the adapter commit, and a failed commit
// is recovered by refetching the whole board.
func (s *Service) MoveTask(ctx context.Context, actor, taskID, sourceColumnID, destColumnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, source := s.findColumn(sourceColumnID)
	if source == nil {
		return notFound("column", sourceColumnID)
	}
	if err := s.requireAction(board, actor, rbac.ActionMoveTask); err != nil {
		return err
	}
	if sourceColumnID == destColumnID {
		return nil
	}

	destBoard, dest := s.findColumn(destColumnID)
	if dest == nil {
		return notFound("column", destColumnID)
	}
	if destBoard.ID != board.ID {
		return validationError("VALIDATION_ERROR", "source and destination columns belong to different boards")
	}

	taskIndex := -1
	for i, task := range source.Tasks {
		if task.ID == taskID {
			taskIndex = i
			break
		}
	}
	if taskIndex < 0 {
		return notFound("task", taskID)
	}
	task := source.Tasks[taskIndex]

	// All preconditions are checked before any mutation: no partial move.
	if err := checkColumnCapacity(board, dest); err != nil {
		return err
	}
	if err := checkDueDate(board, task.DueDate); err != nil {
		return err
	}

	source.Tasks = append(source.Tasks[:taskIndex], source.Tasks[taskIndex+1:]...)
	dest.Tasks = append(dest.Tasks, task)
	task.ColumnID = destColumnID

	if _, err := s.adapter.MoveTask(ctx, taskID, destColumnID); err != nil {
		return s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	return nil
}
