package kanban

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// AddAttachment reads the file's bytes to completion, stores them through
// the blob capability and records the attachment on the task. Reading is the
// one genuinely suspending step; a read failure is surfaced to the caller,
// never swallowed.
func (s *Service) AddAttachment(ctx context.Context, actor, taskID, fileName, contentType string, r io.Reader) (*store.Attachment, error) {
	if fileName == "" {
		return nil, validationError("VALIDATION_ERROR", "file name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	board, _, task := s.findTask(taskID)
	if task == nil {
		return nil, notFound("task", taskID)
	}
	if err := s.requireAction(board, actor, rbac.ActionAddAttachment); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "ATTACHMENT_READ_FAILED",
			fmt.Sprintf("reading %s failed", fileName), err.Error())
	}

	ref, err := s.blobs.Store(ctx, data, contentType)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "ATTACHMENT_STORE_FAILED",
			fmt.Sprintf("storing %s failed", fileName), err.Error())
	}

	attachment := &store.Attachment{
		ID:          util.NewID("att"),
		TaskID:      taskID,
		UploadedBy:  actor,
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		Ref:         ref,
		UploadedAt:  time.Now().UTC(),
	}
	task.Attachments = append(task.Attachments, attachment)

	if _, err := s.adapter.CreateAttachment(ctx, *attachment); err != nil {
		if blobErr := s.blobs.Delete(ctx, ref); blobErr != nil {
			log.Printf("kanban: delete orphaned blob %s: %v", ref, blobErr)
		}
		return nil, s.reconcile(ctx, board.ID, err)
	}
	s.settled(ctx, board)
	copied := *attachment
	return &copied, nil
}

// DeleteAttachment mirrors the comment rule: the uploader or a holder of the
// delete-attachment capability may delete.
func (s *Service) DeleteAttachment(ctx context.Context, actor, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, task, attachment := s.findAttachment(attachmentID)
	if attachment == nil {
		return notFound("attachment", attachmentID)
	}
	if err := s.requireOwnershipOrAction(board, actor, attachment.UploadedBy, rbac.ActionDeleteAttachment); err != nil {
		return err
	}

	for i, candidate := range task.Attachments {
		if candidate.ID == attachmentID {
			task.Attachments = append(task.Attachments[:i], task.Attachments[i+1:]...)
			break
		}
	}

	if err := s.adapter.DeleteAttachment(ctx, attachmentID); err != nil {
		return s.reconcile(ctx, board.ID, err)
	}
	if err := s.blobs.Delete(ctx, attachment.Ref); err != nil {
		log.Printf("kanban: delete blob %s: %v", attachment.Ref, err)
	}
	s.settled(ctx, board)
	return nil
}

// OpenAttachment returns the stored bytes for an attachment, for download
// handlers.
func (s *Service) OpenAttachment(ctx context.Context, actor, attachmentID string) (*store.Attachment, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, _, attachment := s.findAttachment(attachmentID)
	if attachment == nil {
		return nil, nil, notFound("attachment", attachmentID)
	}
	if err := s.requireAction(board, actor, rbac.ActionViewBoard); err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Retrieve(ctx, attachment.Ref)
	if err != nil {
		return nil, nil, domainError(http.StatusBadGateway, "ATTACHMENT_READ_FAILED",
			fmt.Sprintf("retrieving %s failed", attachment.FileName), err.Error())
	}
	copied := *attachment
	return &copied, data, nil
}
