package kanban

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"taskboard/api/internal/store"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk pulled mid-read")
}

func TestAddAttachmentRoundTrip(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	payload := []byte("%PDF-1.7 fake")
	attachment, err := svc.AddAttachment(ctx, "edith", task.ID, "agenda.pdf", "application/pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if attachment.FileName != "agenda.pdf" || attachment.Size != int64(len(payload)) {
		t.Fatalf("unexpected attachment: %+v", attachment)
	}
	if attachment.UploadedBy != "edith" {
		t.Fatalf("UploadedBy = %s, want edith", attachment.UploadedBy)
	}

	got, data, err := svc.OpenAttachment(ctx, "vera", attachment.ID)
	if err != nil {
		t.Fatalf("OpenAttachment: %v", err)
	}
	if got.ID != attachment.ID || !bytes.Equal(data, payload) {
		t.Fatalf("retrieved bytes differ")
	}
}

func TestAddAttachmentDefaultsContentType(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)

	attachment, err := svc.AddAttachment(context.Background(), "edith", task.ID, "notes.bin", "", strings.NewReader("raw"))
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if attachment.ContentType != "application/octet-stream" {
		t.Fatalf("ContentType = %s, want application/octet-stream", attachment.ContentType)
	}
}

func TestAddAttachmentReadFailureSurfaces(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)

	_, err := svc.AddAttachment(context.Background(), "edith", task.ID, "broken.bin", "application/octet-stream", failingReader{})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "ATTACHMENT_READ_FAILED" {
		t.Fatalf("err = %v, want ATTACHMENT_READ_FAILED", err)
	}

	// The failed upload left no attachment behind.
	threadsBoard, _, found := findAttachmentIn(svc, task.ID)
	if found {
		t.Fatalf("attachment recorded despite read failure on board %s", threadsBoard)
	}
}

func TestAddAttachmentPermissions(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)

	_, err := svc.AddAttachment(context.Background(), "vera", task.ID, "x.txt", "text/plain", strings.NewReader("x"))
	if !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied for viewer", err)
	}
}

func TestDeleteAttachmentDualSufficiency(t *testing.T) {
	svc := newTestService(&fakeAdapter{})
	_, task := seedTask(t, svc)
	ctx := context.Background()

	attachment, err := svc.AddAttachment(ctx, "edith", task.ID, "a.txt", "text/plain", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}

	if err := svc.DeleteAttachment(ctx, "vera", attachment.ID); !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied for non-uploader viewer", err)
	}
	// The uploader may delete without the capability; an admin may delete
	// anyone's attachment.
	if err := svc.DeleteAttachment(ctx, "edith", attachment.ID); err != nil {
		t.Fatalf("uploader delete: %v", err)
	}

	second, err := svc.AddAttachment(ctx, "edith", task.ID, "b.txt", "text/plain", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if err := svc.DeleteAttachment(ctx, "alice", second.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestAddAttachmentCommitFailureCleansUp(t *testing.T) {
	fa := &fakeAdapter{}
	svc := newTestService(fa)
	board, task := seedTask(t, svc)
	ctx := context.Background()

	truth, err := svc.Board(ctx, board.ID)
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	fa.createAttachmentFn = func(context.Context, store.Attachment) (store.Attachment, error) {
		return store.Attachment{}, errors.New("constraint violation")
	}
	fa.getBoardFn = func(context.Context, string) (store.Board, error) {
		return *truth.Clone(), nil
	}

	_, err = svc.AddAttachment(ctx, "edith", task.ID, "c.txt", "text/plain", strings.NewReader("c"))
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "REMOTE_COMMIT_FAILED" {
		t.Fatalf("err = %v, want REMOTE_COMMIT_FAILED", err)
	}

	fresh, _ := svc.Board(ctx, board.ID)
	for _, column := range fresh.Columns {
		for _, candidate := range column.Tasks {
			if len(candidate.Attachments) != 0 {
				t.Fatalf("optimistic attachment survived reconciliation: %+v", candidate.Attachments)
			}
		}
	}
}

func findAttachmentIn(svc *Service, taskID string) (string, *store.Attachment, bool) {
	for _, board := range svc.Boards() {
		for _, column := range board.Columns {
			for _, task := range column.Tasks {
				if task.ID != taskID {
					continue
				}
				if len(task.Attachments) > 0 {
					return board.ID, task.Attachments[0], true
				}
			}
		}
	}
	return "", nil, false
}
