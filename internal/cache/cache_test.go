package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"taskboard/api/internal/store"
)

func setupTestCache(t *testing.T) (*BoardCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewBoardCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create board cache: %v", err)
	}
	return cache, s
}

func sampleBoard() *store.Board {
	return &store.Board{
		ID:        "brd_1",
		Title:     "Thesis",
		CreatedBy: "u1",
		TaskLimit: 3,
		CreatedAt: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
		Members:   []store.Member{{UserID: "u1", Role: "admin"}},
		Columns: []*store.Column{
			{ID: "col_1", BoardID: "brd_1", Title: "To Do", Tasks: []*store.Task{
				{ID: "tsk_1", ColumnID: "col_1", Title: "Outline", Priority: store.PriorityHigh, CreatedBy: "u1"},
			}},
		},
	}
}

func TestPutAndGet(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	board := sampleBoard()
	if err := cache.Put(ctx, board); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, board.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for cached board")
	}
	if got.Title != board.Title || got.TaskLimit != board.TaskLimit {
		t.Errorf("got %+v, want %+v", got, board)
	}
	if len(got.Columns) != 1 || len(got.Columns[0].Tasks) != 1 {
		t.Errorf("snapshot lost the board tree: %+v", got.Columns)
	}
}

func TestGetMiss(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	got, err := cache.Get(context.Background(), "brd_unknown")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get returned %+v for uncached board, want nil", got)
	}
}

func TestInvalidate(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	board := sampleBoard()
	if err := cache.Put(ctx, board); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Invalidate(ctx, board.ID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	got, err := cache.Get(ctx, board.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("snapshot survived invalidation: %+v", got)
	}
}

func TestSnapshotExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	cache, err := NewBoardCache("redis://"+s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("failed to create board cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Put(ctx, sampleBoard()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(2 * time.Second)

	got, err := cache.Get(ctx, "brd_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("snapshot survived TTL expiry: %+v", got)
	}
}
