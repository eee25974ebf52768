// Package kanban implements the board engine: a role-gated in-memory tree of
// boards, columns, tasks, comments and attachments kept in sync with a
// persistence adapter through optimistic local mutation and
// reconcile-by-refetch on commit failure.
package kanban

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"taskboard/api/internal/blob"
	"taskboard/api/internal/cache"
	"taskboard/api/internal/email"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Service struct {
	adapter          store.Adapter
	blobs            blob.Store
	defaultTaskLimit int

	cache    *cache.BoardCache
	searcher *search.Service
	mail     *email.Service

	// Mutations run under one mutex, applied in call order one at a time.
	mu        sync.Mutex
	boards    map[string]*store.Board
	currentID string
}

func New(adapter store.Adapter, blobs blob.Store, defaultTaskLimit int) *Service {
	return &Service{
		adapter:          adapter,
		blobs:            blobs,
		defaultTaskLimit: defaultTaskLimit,
		boards:           make(map[string]*store.Board),
	}
}

// NewWithCollaborators wires the optional cache, search and mail services;
// any of them may be nil.
func NewWithCollaborators(adapter store.Adapter, blobs blob.Store, defaultTaskLimit int, boardCache *cache.BoardCache, searcher *search.Service, mail *email.Service) *Service {
	service := New(adapter, blobs, defaultTaskLimit)
	service.cache = boardCache
	service.searcher = searcher
	service.mail = mail
	return service
}

// Load pulls every board tree from the adapter into the canonical
// collection. Called once at startup.
func (s *Service) Load(ctx context.Context) error {
	boards, err := s.adapter.ListBoards(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, board := range boards {
		full, err := s.adapter.GetBoard(ctx, board.ID)
		if err != nil {
			return err
		}
		s.boards[full.ID] = &full
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.adapter.Ping(ctx)
}

// --- read accessors -------------------------------------------------------

// Boards returns snapshots of every board, oldest first.
func (s *Service) Boards() []*store.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	boards := make([]*store.Board, 0, len(s.boards))
	for _, board := range s.boards {
		boards = append(boards, board.Clone())
	}
	sort.Slice(boards, func(i, j int) bool {
		if boards[i].CreatedAt.Equal(boards[j].CreatedAt) {
			return boards[i].ID < boards[j].ID
		}
		return boards[i].CreatedAt.Before(boards[j].CreatedAt)
	})
	return boards
}

// Board returns a snapshot of one board. Boards missing from the canonical
// collection are looked up through the snapshot cache and then the adapter.
func (s *Service) Board(ctx context.Context, id string) (*store.Board, error) {
	s.mu.Lock()
	if board, ok := s.boards[id]; ok {
		snapshot := board.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()

	// Cache and adapter lookups run outside the lock so a slow fetch
	// cannot stall mutations on other boards.
	var fetched *store.Board
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, id); err == nil && cached != nil {
			fetched = cached
		}
	}
	if fetched == nil {
		board, err := s.adapter.GetBoard(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("board", id)
		}
		if err != nil {
			return nil, err
		}
		fetched = &board
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent caller may have repopulated the entry while the fetch
	// ran; the canonical copy wins.
	if board, ok := s.boards[id]; ok {
		return board.Clone(), nil
	}
	s.boards[id] = fetched
	return fetched.Clone(), nil
}

// CurrentBoard returns a snapshot of the active board, or nil when none is
// selected. The current projection is a pointer into the canonical
// collection, never a separately mutated copy.
func (s *Service) CurrentBoard() *store.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID == "" {
		return nil
	}
	board, ok := s.boards[s.currentID]
	if !ok {
		return nil
	}
	return board.Clone()
}

func (s *Service) SetCurrentBoard(actor, boardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionViewBoard); err != nil {
		return err
	}
	s.currentID = boardID
	return nil
}

// --- board operations -----------------------------------------------------

type CreateBoardInput struct {
	Title       string
	Description string
	Deadline    *time.Time
	// TaskLimit overrides the capacity ceiling. When nil, deadline-bounded
	// boards get the configured default and open-ended boards are unbounded.
	TaskLimit *int
	// Columns are the initial column titles, in order.
	Columns []string
}

func (s *Service) CreateBoard(ctx context.Context, actor string, in CreateBoardInput) (*store.Board, error) {
	if in.Title == "" {
		return nil, validationError("VALIDATION_ERROR", "title is required")
	}
	limit := 0
	if in.TaskLimit != nil {
		limit = *in.TaskLimit
	} else if in.Deadline != nil {
		limit = s.defaultTaskLimit
	}
	if limit < 0 {
		return nil, validationError("VALIDATION_ERROR", "task limit must not be negative")
	}

	board := &store.Board{
		ID:          util.NewID("brd"),
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   actor,
		Deadline:    in.Deadline,
		TaskLimit:   limit,
		CreatedAt:   time.Now().UTC(),
		Members:     []store.Member{{UserID: actor, Role: string(rbac.RoleAdmin)}},
	}
	for _, title := range in.Columns {
		board.Columns = append(board.Columns, &store.Column{
			ID:      util.NewID("col"),
			BoardID: board.ID,
			Title:   title,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[board.ID] = board

	committed, err := s.adapter.CreateBoard(ctx, *board.Clone())
	if err != nil {
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.boards[board.ID] = &committed
	s.settled(ctx, &committed)
	return committed.Clone(), nil
}

type UpdateBoardInput struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	TaskLimit   *int
}

func (s *Service) UpdateBoard(ctx context.Context, actor, boardID string, in UpdateBoardInput) (*store.Board, error) {
	if in.Title != nil && *in.Title == "" {
		return nil, validationError("VALIDATION_ERROR", "title must not be blank")
	}
	if in.TaskLimit != nil && *in.TaskLimit < 0 {
		return nil, validationError("VALIDATION_ERROR", "task limit must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return nil, notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionEditBoard); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if in.Title != nil {
		board.Title = *in.Title
	}
	if in.Description != nil {
		board.Description = *in.Description
	}
	if in.Deadline != nil {
		board.Deadline = in.Deadline
	}
	if in.TaskLimit != nil {
		board.TaskLimit = *in.TaskLimit
	}
	board.UpdatedAt = &now

	if _, err := s.adapter.UpdateBoard(ctx, boardID, store.BoardFields{
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
		TaskLimit:   in.TaskLimit,
	}); err != nil {
		return nil, s.reconcile(ctx, boardID, err)
	}
	s.settled(ctx, board)
	return board.Clone(), nil
}

func (s *Service) DeleteBoard(ctx context.Context, actor, boardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionEditBoard); err != nil {
		return err
	}

	delete(s.boards, boardID)
	if s.currentID == boardID {
		s.currentID = ""
	}

	if err := s.adapter.DeleteBoard(ctx, boardID); err != nil {
		return s.reconcile(ctx, boardID, err)
	}

	// Cascade the external collaborators: blobs, cache, search index.
	for _, column := range board.Columns {
		for _, task := range column.Tasks {
			s.dropTaskArtifacts(ctx, task)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, boardID); err != nil {
			log.Printf("kanban: invalidate cache for %s: %v", boardID, err)
		}
	}
	return nil
}

// --- column operations ----------------------------------------------------

func (s *Service) AddColumn(ctx context.Context, actor, boardID, title string) (*store.Column, error) {
	if title == "" {
		return nil, validationError("VALIDATION_ERROR", "title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return nil, notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionEditBoard); err != nil {
		return nil, err
	}

	column := &store.Column{
		ID:      util.NewID("col"),
		BoardID: boardID,
		Title:   title,
	}
	board.Columns = append(board.Columns, column)

	if _, err := s.adapter.CreateColumn(ctx, *column); err != nil {
		return nil, s.reconcile(ctx, boardID, err)
	}
	s.settled(ctx, board)
	copied := *column
	return &copied, nil
}

func (s *Service) UpdateColumn(ctx context.Context, actor, columnID, title string) (*store.Column, error) {
	if title == "" {
		return nil, validationError("VALIDATION_ERROR", "title must not be blank")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, column := s.findColumn(columnID)
	if column == nil {
		return nil, notFound("column", columnID)
	}
	if err := s.requireAction(board, actor, rbac.ActionEditBoard); err != nil {
		return nil, err
	}

	column.Title = title

	if _, err := s.adapter.UpdateColumn(ctx, columnID, title); err != nil {
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	copied := *column
	copied.Tasks = nil
	return &copied, nil
}

// DeleteColumn removes the column and every task under it.
func (s *Service) DeleteColumn(ctx context.Context, actor, columnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, column := s.findColumn(columnID)
	if column == nil {
		return notFound("column", columnID)
	}
	if err := s.requireAction(board, actor, rbac.ActionEditBoard); err != nil {
		return err
	}

	for i, candidate := range board.Columns {
		if candidate.ID == columnID {
			board.Columns = append(board.Columns[:i], board.Columns[i+1:]...)
			break
		}
	}

	if err := s.adapter.DeleteColumn(ctx, columnID); err != nil {
		return s.reconcile(ctx, board.ID, err)
	}
	for _, task := range column.Tasks {
		s.dropTaskArtifacts(ctx, task)
	}
	s.settled(ctx, board)
	return nil
}

// --- membership operations ------------------------------------------------

// InviteMember adds a user to the board by email. The adapter resolves the
// invitee's identity, so unlike the other mutations the commit runs first
// and the local member list follows the returned record.
func (s *Service) InviteMember(ctx context.Context, actor, boardID, memberEmail string, role rbac.Role) (*store.Member, error) {
	if rbac.Normalize(string(role)) == rbac.RoleNone {
		return nil, validationError("VALIDATION_ERROR", "role must be admin, editor or viewer")
	}
	if memberEmail == "" {
		return nil, validationError("VALIDATION_ERROR", "email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return nil, notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionInviteMember); err != nil {
		return nil, err
	}

	member, err := s.adapter.InviteMember(ctx, boardID, memberEmail, string(role))
	if err != nil {
		return nil, remoteCommitError(err)
	}

	replaced := false
	for i, existing := range board.Members {
		if existing.UserID == member.UserID {
			board.Members[i] = member
			replaced = true
			break
		}
	}
	if !replaced {
		board.Members = append(board.Members, member)
	}
	s.settled(ctx, board)

	if s.mail != nil {
		go func(title string) {
			if err := s.mail.SendBoardInvitation(memberEmail, title, string(role), actor); err != nil {
				log.Printf("kanban: invitation mail to %s: %v", memberEmail, err)
			}
		}(board.Title)
	}
	copied := member
	return &copied, nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, actor, boardID, userID string, role rbac.Role) error {
	if rbac.Normalize(string(role)) == rbac.RoleNone {
		return validationError("VALIDATION_ERROR", "role must be admin, editor or viewer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionChangeRole); err != nil {
		return err
	}
	if userID == board.CreatedBy {
		return validationError("CREATOR_IMMUTABLE", "the board creator's role cannot be changed")
	}

	found := false
	for i, member := range board.Members {
		if member.UserID == userID {
			board.Members[i].Role = string(role)
			found = true
			break
		}
	}
	if !found {
		return notFound("member", userID)
	}

	if err := s.adapter.UpdateMemberRole(ctx, boardID, userID, string(role)); err != nil {
		return s.reconcile(ctx, boardID, err)
	}
	s.settled(ctx, board)
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, actor, boardID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	if err := s.requireAction(board, actor, rbac.ActionRemoveMember); err != nil {
		return err
	}
	if userID == board.CreatedBy {
		return validationError("CREATOR_IMMUTABLE", "the board creator cannot be removed")
	}

	found := false
	for i, member := range board.Members {
		if member.UserID == userID {
			board.Members = append(board.Members[:i], board.Members[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return notFound("member", userID)
	}

	if err := s.adapter.RemoveMember(ctx, boardID, userID); err != nil {
		return s.reconcile(ctx, boardID, err)
	}
	s.settled(ctx, board)
	return nil
}

// --- shared plumbing ------------------------------------------------------

func (s *Service) requireAction(board *store.Board, actor string, action rbac.Action) error {
	role := rbac.Normalize(board.RoleOf(actor))
	if !rbac.Can(role, action) {
		return permissionDenied(string(action))
	}
	return nil
}

// reconcile discards the optimistic local state of the board and restores
// ground truth from the adapter. A partial local rollback is never
// attempted: the optimistic mutation may already have been superseded.
func (s *Service) reconcile(ctx context.Context, boardID string, commitErr error) error {
	fresh, err := s.adapter.GetBoard(ctx, boardID)
	switch {
	case err == nil:
		s.boards[boardID] = &fresh
	case errors.Is(err, store.ErrNotFound):
		delete(s.boards, boardID)
		if s.currentID == boardID {
			s.currentID = ""
		}
	default:
		log.Printf("kanban: refetch board %s after failed commit: %v", boardID, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, boardID); err != nil {
			log.Printf("kanban: invalidate cache for %s: %v", boardID, err)
		}
	}
	return remoteCommitError(commitErr)
}

// settled refreshes the snapshot cache after a successful commit.
func (s *Service) settled(ctx context.Context, board *store.Board) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, board); err != nil {
		log.Printf("kanban: cache board %s: %v", board.ID, err)
	}
}

// dropTaskArtifacts removes a deleted task's footprint in the blob store and
// search index. Failures are logged, not surfaced: the entities are gone.
func (s *Service) dropTaskArtifacts(ctx context.Context, task *store.Task) {
	if s.blobs != nil {
		for _, attachment := range task.Attachments {
			if err := s.blobs.Delete(ctx, attachment.Ref); err != nil {
				log.Printf("kanban: delete blob %s: %v", attachment.Ref, err)
			}
		}
	}
	if s.searcher != nil {
		s.searcher.DeleteTask(task.ID)
		for _, comment := range task.Comments {
			s.searcher.DeleteComment(comment.ID)
		}
	}
}

func (s *Service) findColumn(columnID string) (*store.Board, *store.Column) {
	for _, board := range s.boards {
		for _, column := range board.Columns {
			if column.ID == columnID {
				return board, column
			}
		}
	}
	return nil, nil
}

func (s *Service) findTask(taskID string) (*store.Board, *store.Column, *store.Task) {
	for _, board := range s.boards {
		for _, column := range board.Columns {
			for _, task := range column.Tasks {
				if task.ID == taskID {
					return board, column, task
				}
			}
		}
	}
	return nil, nil, nil
}

func (s *Service) findComment(commentID string) (*store.Board, *store.Task, *store.Comment) {
	for _, board := range s.boards {
		for _, column := range board.Columns {
			for _, task := range column.Tasks {
				for _, comment := range task.Comments {
					if comment.ID == commentID {
						return board, task, comment
					}
				}
			}
		}
	}
	return nil, nil, nil
}

func (s *Service) findAttachment(attachmentID string) (*store.Board, *store.Task, *store.Attachment) {
	for _, board := range s.boards {
		for _, column := range board.Columns {
			for _, task := range column.Tasks {
				for _, attachment := range task.Attachments {
					if attachment.ID == attachmentID {
						return board, task, attachment
					}
				}
			}
		}
	}
	return nil, nil, nil
}
