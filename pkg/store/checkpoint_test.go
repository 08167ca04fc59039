package store

import (
	"context"
	"testing"
)

func TestFileCheckpoint_LoadBeforeSaveReturnsNotSet(t *testing.T) {
	c := NewFileCheckpoint(t.TempDir(), "chaina-submissions")
	_, ok, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false before any Save")
	}
}

func TestFileCheckpoint_SaveThenLoadRoundTrips(t *testing.T) {
	c := NewFileCheckpoint(t.TempDir(), "chaina-submissions")
	ctx := context.Background()

	if err := c.Save(ctx, 12345); err != nil {
		t.Fatalf("Save: %v", err)
	}
	block, ok, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok || block != 12345 {
		t.Fatalf("expected (12345, true), got (%d, %v)", block, ok)
	}
}

func TestFileCheckpoint_SaveOverwritesPreviousValue(t *testing.T) {
	c := NewFileCheckpoint(t.TempDir(), "stream")
	ctx := context.Background()

	_ = c.Save(ctx, 100)
	_ = c.Save(ctx, 200)

	block, ok, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok || block != 200 {
		t.Fatalf("expected latest value 200, got %d", block)
	}
}

func TestMemoryCheckpoint_RoundTrips(t *testing.T) {
	c := &MemoryCheckpoint{}
	ctx := context.Background()

	if _, ok, _ := c.Load(ctx); ok {
		t.Fatal("expected unset initially")
	}
	_ = c.Save(ctx, 42)
	block, ok, _ := c.Load(ctx)
	if !ok || block != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", block, ok)
	}
}
