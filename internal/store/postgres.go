package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateBoard(ctx context.Context, board Board) (Board, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Board{}, fmt.Errorf("begin create board: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO boards (id, title, description, created_by, deadline, task_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, board.ID, board.Title, board.Description, board.CreatedBy, board.Deadline, board.TaskLimit).Scan(&board.CreatedAt)
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}

	for _, member := range board.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_members (board_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (board_id, user_id) DO UPDATE SET role=EXCLUDED.role
		`, board.ID, member.UserID, member.Role); err != nil {
			return Board{}, fmt.Errorf("insert board member: %w", err)
		}
	}

	for position, column := range board.Columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO columns (id, board_id, title, position)
			VALUES ($1, $2, $3, $4)
		`, column.ID, board.ID, column.Title, position); err != nil {
			return Board{}, fmt.Errorf("insert column: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Board{}, fmt.Errorf("commit create board: %w", err)
	}
	return s.GetBoard(ctx, board.ID)
}

func (s *PostgresStore) GetBoard(ctx context.Context, id string) (Board, error) {
	var board Board
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, created_by, deadline, task_limit, created_at, updated_at
		FROM boards WHERE id=$1
	`, id).Scan(&board.ID, &board.Title, &board.Description, &board.CreatedBy, &board.Deadline, &board.TaskLimit, &board.CreatedAt, &board.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Board{}, ErrNotFound
	}
	if err != nil {
		return Board{}, fmt.Errorf("read board: %w", err)
	}

	members, err := s.listMembers(ctx, id)
	if err != nil {
		return Board{}, err
	}
	board.Members = members

	columns, err := s.ListColumnsByBoard(ctx, id)
	if err != nil {
		return Board{}, err
	}
	board.Columns = make([]*Column, len(columns))
	for i := range columns {
		column := columns[i]
		tasks, err := s.listTasksByColumn(ctx, column.ID)
		if err != nil {
			return Board{}, err
		}
		column.Tasks = tasks
		board.Columns[i] = &column
	}
	return board, nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, id string, fields BoardFields) (Board, error) {
	set := []string{"updated_at=NOW()"}
	args := []any{id}
	next := 2
	if fields.Title != nil {
		set = append(set, fmt.Sprintf("title=$%d", next))
		args = append(args, *fields.Title)
		next++
	}
	if fields.Description != nil {
		set = append(set, fmt.Sprintf("description=$%d", next))
		args = append(args, *fields.Description)
		next++
	}
	if fields.Deadline != nil {
		set = append(set, fmt.Sprintf("deadline=$%d", next))
		args = append(args, *fields.Deadline)
		next++
	}
	if fields.TaskLimit != nil {
		set = append(set, fmt.Sprintf("task_limit=$%d", next))
		args = append(args, *fields.TaskLimit)
		next++
	}

	query := fmt.Sprintf(`UPDATE boards SET %s WHERE id=$1`, strings.Join(set, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Board{}, fmt.Errorf("update board: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return Board{}, ErrNotFound
	}
	return s.GetBoard(ctx, id)
}

func (s *PostgresStore) DeleteBoard(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, created_by, deadline, task_limit, created_at, updated_at
		FROM boards ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var board Board
		if err := rows.Scan(&board.ID, &board.Title, &board.Description, &board.CreatedBy, &board.Deadline, &board.TaskLimit, &board.CreatedAt, &board.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, board)
	}
	return boards, rows.Err()
}

func (s *PostgresStore) listMembers(ctx context.Context, boardID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, role FROM board_members WHERE board_id=$1 ORDER BY user_id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var member Member
		if err := rows.Scan(&member.UserID, &member.Role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (s *PostgresStore) CreateColumn(ctx context.Context, column Column) (Column, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO columns (id, board_id, title, position)
		VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position)+1, 0) FROM columns WHERE board_id=$2))
		RETURNING id
	`, column.ID, column.BoardID, column.Title).Scan(&column.ID)
	if err != nil {
		return Column{}, fmt.Errorf("insert column: %w", err)
	}
	column.Tasks = nil
	return column, nil
}

func (s *PostgresStore) UpdateColumn(ctx context.Context, id, title string) (Column, error) {
	var column Column
	err := s.db.QueryRowContext(ctx, `
		UPDATE columns SET title=$2 WHERE id=$1
		RETURNING id, board_id, title
	`, id, title).Scan(&column.ID, &column.BoardID, &column.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return Column{}, ErrNotFound
	}
	if err != nil {
		return Column{}, fmt.Errorf("update column: %w", err)
	}
	return column, nil
}

func (s *PostgresStore) DeleteColumn(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM columns WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListColumnsByBoard(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title FROM columns WHERE board_id=$1 ORDER BY position
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.ID, &column.BoardID, &column.Title); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

const taskColumns = `id, column_id, title, description, priority, due_date, created_by, assignees::text, labels::text, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var task Task
	var assigneesRaw, labelsRaw []byte
	err := row.Scan(&task.ID, &task.ColumnID, &task.Title, &task.Description, &task.Priority, &task.DueDate, &task.CreatedBy, &assigneesRaw, &labelsRaw, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	_ = json.Unmarshal(assigneesRaw, &task.Assignees)
	_ = json.Unmarshal(labelsRaw, &task.Labels)
	return task, nil
}

func (s *PostgresStore) listTasksByColumn(ctx context.Context, columnID string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE column_id=$1 ORDER BY position
	`, columnID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		comments, err := s.listComments(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Comments = comments
		attachments, err := s.listAttachments(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Attachments = attachments
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	assignees, err := json.Marshal(nonNilStrings(task.Assignees))
	if err != nil {
		return Task{}, fmt.Errorf("marshal assignees: %w", err)
	}
	labels, err := json.Marshal(nonNilStrings(task.Labels))
	if err != nil {
		return Task{}, fmt.Errorf("marshal labels: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, column_id, title, description, priority, due_date, created_by, assignees, labels, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb,
			(SELECT COALESCE(MAX(position)+1, 0) FROM tasks WHERE column_id=$2))
		RETURNING created_at
	`, task.ID, task.ColumnID, task.Title, task.Description, task.Priority, task.DueDate, task.CreatedBy, string(assignees), string(labels)).Scan(&task.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) (Task, error) {
	assignees, err := json.Marshal(nonNilStrings(task.Assignees))
	if err != nil {
		return Task{}, fmt.Errorf("marshal assignees: %w", err)
	}
	labels, err := json.Marshal(nonNilStrings(task.Labels))
	if err != nil {
		return Task{}, fmt.Errorf("marshal labels: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, priority=$4, due_date=$5, assignees=$6::jsonb, labels=$7::jsonb, updated_at=NOW()
		WHERE id=$1
		RETURNING `+taskColumns+`
	`, task.ID, task.Title, task.Description, task.Priority, task.DueDate, string(assignees), string(labels))
	updated, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MoveTask(ctx context.Context, id, destColumnID string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET column_id=$2, position=(SELECT COALESCE(MAX(position)+1, 0) FROM tasks WHERE column_id=$2)
		WHERE id=$1
		RETURNING `+taskColumns+`
	`, id, destColumnID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("move task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) listComments(ctx context.Context, taskID string) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, author, content, parent_id, created_at, updated_at
		FROM comments WHERE task_id=$1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.TaskID, &comment.Author, &comment.Content, &comment.ParentID, &comment.CreatedAt, &comment.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (id, task_id, author, content, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, comment.ID, comment.TaskID, comment.Author, comment.Content, comment.ParentID).Scan(&comment.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, id, content string) (Comment, error) {
	var comment Comment
	err := s.db.QueryRowContext(ctx, `
		UPDATE comments SET content=$2, updated_at=NOW() WHERE id=$1
		RETURNING id, task_id, author, content, parent_id, created_at, updated_at
	`, id, content).Scan(&comment.ID, &comment.TaskID, &comment.Author, &comment.Content, &comment.ParentID, &comment.CreatedAt, &comment.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) listAttachments(ctx context.Context, taskID string) ([]*Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, uploaded_by, file_name, content_type, size_bytes, ref, uploaded_at
		FROM attachments WHERE task_id=$1 ORDER BY uploaded_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		var attachment Attachment
		if err := rows.Scan(&attachment.ID, &attachment.TaskID, &attachment.UploadedBy, &attachment.FileName, &attachment.ContentType, &attachment.Size, &attachment.Ref, &attachment.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, &attachment)
	}
	return attachments, rows.Err()
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (id, task_id, uploaded_by, file_name, content_type, size_bytes, ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING uploaded_at
	`, attachment.ID, attachment.TaskID, attachment.UploadedBy, attachment.FileName, attachment.ContentType, attachment.Size, attachment.Ref).Scan(&attachment.UploadedAt)
	if err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return attachment, nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InviteMember(ctx context.Context, boardID, email, role string) (Member, error) {
	userID, err := s.ensureUserByEmail(ctx, email)
	if err != nil {
		return Member{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO board_members (board_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (board_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, boardID, userID, role); err != nil {
		return Member{}, fmt.Errorf("upsert membership: %w", err)
	}
	return Member{UserID: userID, Role: role}, nil
}

func (s *PostgresStore) ensureUserByEmail(ctx context.Context, email string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email=$1`, email).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, display_name)
		VALUES (CONCAT('usr_', MD5(RANDOM()::text)), $1, SPLIT_PART($1, '@', 1))
		ON CONFLICT (email) DO UPDATE SET email=EXCLUDED.email
		RETURNING id
	`, email).Scan(&userID)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) UpdateMemberRole(ctx context.Context, boardID, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE board_members SET role=$3 WHERE board_id=$1 AND user_id=$2
	`, boardID, userID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, boardID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM board_members WHERE board_id=$1 AND user_id=$2
	`, boardID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
