package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/kanban"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type HTTPServer struct {
	service    *kanban.Service
	searcher   *search.Service
	jwtSecret  []byte
	corsOrigin string
}

func NewHTTPServer(service *kanban.Service, searcher *search.Service, jwtSecret []byte, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, searcher: searcher, jwtSecret: jwtSecret, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	ident, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	actor := ident.UserID

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		boardID := strings.TrimSpace(r.URL.Query().Get("boardId"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a non-negative integer", nil)
				return
			}
			limit = parsed
		}
		offset := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be a non-negative integer", nil)
				return
			}
			offset = parsed
		}

		if s.searcher == nil {
			writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}, Query: q})
			return
		}
		payload := s.searcher.Search(search.Query{
			Text:          q,
			FilterType:    search.ResultType(filterType),
			FilterBoardID: boardID,
			Limit:         limit,
			Offset:        offset,
		})
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/boards" {
		boards := s.service.Boards()
		summaries := make([]map[string]any, 0, len(boards))
		for _, board := range boards {
			summaries = append(summaries, boardSummary(board))
		}
		writeJSON(w, http.StatusOK, map[string]any{"boards": summaries})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/boards" {
		var body struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Deadline    string   `json:"deadline"`
			TaskLimit   *int     `json:"taskLimit"`
			Columns     []string `json:"columns"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		deadline, err := parseTimePtr(body.Deadline)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "deadline must be RFC 3339", nil)
			return
		}
		board, err := s.service.CreateBoard(r.Context(), actor, kanban.CreateBoardInput{
			Title:       body.Title,
			Description: body.Description,
			Deadline:    deadline,
			TaskLimit:   body.TaskLimit,
			Columns:     body.Columns,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"board": board})
		return
	}

	if r.URL.Path == "/api/boards/current" {
		if r.Method == http.MethodGet {
			board := s.service.CurrentBoard()
			writeJSON(w, http.StatusOK, map[string]any{"board": board})
			return
		}
		if r.Method == http.MethodPut {
			var body struct {
				BoardID string `json:"boardId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.SetCurrentBoard(actor, body.BoardID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "boards" {
		s.handleBoards(w, r, actor, parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "columns" {
		s.handleColumns(w, r, actor, parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "tasks" {
		s.handleTasks(w, r, actor, parts)
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "comments" {
		s.handleComment(w, r, actor, parts[2])
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "attachments" {
		s.handleAttachment(w, r, actor, parts[2])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request, actor string, parts []string) {
	boardID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			board, err := s.service.Board(r.Context(), boardID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"board": board})
			return
		case http.MethodPut:
			var body struct {
				Title       *string `json:"title"`
				Description *string `json:"description"`
				Deadline    *string `json:"deadline"`
				TaskLimit   *int    `json:"taskLimit"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			in := kanban.UpdateBoardInput{
				Title:       body.Title,
				Description: body.Description,
				TaskLimit:   body.TaskLimit,
			}
			if body.Deadline != nil {
				deadline, err := parseTimePtr(*body.Deadline)
				if err != nil {
					writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "deadline must be RFC 3339", nil)
					return
				}
				in.Deadline = deadline
			}
			board, err := s.service.UpdateBoard(r.Context(), actor, boardID, in)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"board": board})
			return
		case http.MethodDelete:
			if err := s.service.DeleteBoard(r.Context(), actor, boardID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "columns" && r.Method == http.MethodPost {
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		column, err := s.service.AddColumn(r.Context(), actor, boardID, body.Title)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"column": column})
		return
	}

	if len(parts) == 4 && parts[3] == "members" && r.Method == http.MethodPost {
		var body struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		member, err := s.service.InviteMember(r.Context(), actor, boardID, body.Email, rbac.Role(body.Role))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"member": member})
		return
	}

	if len(parts) == 5 && parts[3] == "members" {
		userID := parts[4]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Role string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateMemberRole(r.Context(), actor, boardID, userID, rbac.Role(body.Role)); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.RemoveMember(r.Context(), actor, boardID, userID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleColumns(w http.ResponseWriter, r *http.Request, actor string, parts []string) {
	columnID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Title string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			column, err := s.service.UpdateColumn(r.Context(), actor, columnID, body.Title)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"column": column})
			return
		case http.MethodDelete:
			if err := s.service.DeleteColumn(r.Context(), actor, columnID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "tasks" && r.Method == http.MethodPost {
		in, err := decodeTaskInput(r)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		task, err := s.service.AddTask(r.Context(), actor, columnID, in)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"task": task})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, actor string, parts []string) {
	taskID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodPut:
			in, err := decodeTaskUpdate(r)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			task, err := s.service.UpdateTask(r.Context(), actor, taskID, in)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"task": task})
			return
		case http.MethodDelete:
			if err := s.service.DeleteTask(r.Context(), actor, taskID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "move" && r.Method == http.MethodPost {
		var body struct {
			SourceColumnID string `json:"sourceColumnId"`
			DestColumnID   string `json:"destColumnId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.MoveTask(r.Context(), actor, taskID, body.SourceColumnID, body.DestColumnID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[3] == "comments" {
		if r.Method == http.MethodGet {
			threads, err := s.service.CommentThreads(taskID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				Content  string  `json:"content"`
				ParentID *string `json:"parentId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			comment, err := s.service.AddComment(r.Context(), actor, taskID, body.Content, body.ParentID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "attachments" && r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form required", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
			return
		}
		defer file.Close()

		attachment, err := s.service.AddAttachment(r.Context(), actor, taskID, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"attachment": attachment})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleComment(w http.ResponseWriter, r *http.Request, actor, commentID string) {
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.UpdateComment(r.Context(), actor, commentID, body.Content)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
		return
	case http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), actor, commentID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleAttachment(w http.ResponseWriter, r *http.Request, actor, attachmentID string) {
	switch r.Method {
	case http.MethodGet:
		attachment, data, err := s.service.OpenAttachment(r.Context(), actor, attachmentID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+attachment.FileName+"\"")
		w.Header().Set("Content-Type", attachment.ContentType)
		w.Write(data)
		return
	case http.MethodDelete:
		if err := s.service.DeleteAttachment(r.Context(), actor, attachmentID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return auth.Identity{}, false
	}
	ident, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return auth.Identity{}, false
	}
	return ident, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.ShortID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func boardSummary(board *store.Board) map[string]any {
	taskCount := 0
	for _, column := range board.Columns {
		taskCount += len(column.Tasks)
	}
	return map[string]any{
		"id":          board.ID,
		"title":       board.Title,
		"description": board.Description,
		"createdBy":   board.CreatedBy,
		"deadline":    board.Deadline,
		"taskLimit":   board.TaskLimit,
		"columnCount": len(board.Columns),
		"taskCount":   taskCount,
		"memberCount": len(board.Members),
	}
}

func decodeTaskInput(r *http.Request) (kanban.TaskInput, error) {
	var body struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Priority    string   `json:"priority"`
		DueDate     string   `json:"dueDate"`
		Assignees   []string `json:"assignees"`
		Labels      []string `json:"labels"`
	}
	if err := decodeBody(r, &body); err != nil {
		return kanban.TaskInput{}, err
	}
	dueDate, err := parseTimePtr(body.DueDate)
	if err != nil {
		return kanban.TaskInput{}, fmt.Errorf("dueDate must be RFC 3339")
	}
	return kanban.TaskInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    store.Priority(body.Priority),
		DueDate:     dueDate,
		Assignees:   body.Assignees,
		Labels:      body.Labels,
	}, nil
}

func decodeTaskUpdate(r *http.Request) (kanban.UpdateTaskInput, error) {
	var body struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Priority    *string  `json:"priority"`
		DueDate     *string  `json:"dueDate"`
		Assignees   []string `json:"assignees"`
		Labels      []string `json:"labels"`
	}
	if err := decodeBody(r, &body); err != nil {
		return kanban.UpdateTaskInput{}, err
	}
	in := kanban.UpdateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Assignees:   body.Assignees,
		Labels:      body.Labels,
	}
	if body.Priority != nil {
		priority := store.Priority(*body.Priority)
		in.Priority = &priority
	}
	if body.DueDate != nil {
		dueDate, err := parseTimePtr(*body.DueDate)
		if err != nil {
			return kanban.UpdateTaskInput{}, fmt.Errorf("dueDate must be RFC 3339")
		}
		in.DueDate = dueDate
	}
	return in, nil
}

func parseTimePtr(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *kanban.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
