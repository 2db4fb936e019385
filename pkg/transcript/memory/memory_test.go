package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/transcript"
)

func makeRecord(sessionID string, seq int) transcript.Record {
	return transcript.Record{
		SessionID: sessionID,
		Seq:       seq,
		Kind:      transcript.KindCompaction,
		Summary:   "the user listed files",
		Messages: []api.Message{
			api.NewUserMessage("list files"),
			api.NewAssistantMessage("a.txt", nil),
		},
		CreatedAt: time.Unix(1000, 0),
	}
}

func TestArchiveAndRecords(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.Archive(ctx, makeRecord("sess-1", 2)); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if err := s.Archive(ctx, makeRecord("sess-1", 1)); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	got, err := s.Records(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("expected records ordered by seq, got %d, %d", got[0].Seq, got[1].Seq)
	}
	if len(got[0].Messages) != 2 {
		t.Errorf("len(Messages) = %d, want 2", len(got[0].Messages))
	}
}

func TestRecordsUnknownSession(t *testing.T) {
	s := New(0)

	got, err := s.Records(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestArchiveConflict(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.Archive(ctx, makeRecord("sess-1", 1))
	err := s.Archive(ctx, makeRecord("sess-1", 1))
	if !errors.Is(err, transcript.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestArchiveCopiesMessages(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := makeRecord("sess-1", 1)
	s.Archive(ctx, rec)
	rec.Messages[0].Content = "mutated"

	got, _ := s.Records(ctx, "sess-1")
	if got[0].Messages[0].Content != "list files" {
		t.Errorf("stored record changed with caller's slice: %q", got[0].Messages[0].Content)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	s.Archive(ctx, makeRecord("sess-a", 1))
	s.Archive(ctx, makeRecord("sess-b", 1))
	// Touch sess-a so sess-b becomes the oldest.
	s.Archive(ctx, makeRecord("sess-a", 2))
	s.Archive(ctx, makeRecord("sess-c", 1))

	if s.Sessions() != 2 {
		t.Fatalf("Sessions() = %d, want 2", s.Sessions())
	}

	if got, _ := s.Records(ctx, "sess-b"); len(got) != 0 {
		t.Error("expected sess-b to be evicted")
	}
	if got, _ := s.Records(ctx, "sess-a"); len(got) != 2 {
		t.Errorf("expected sess-a to keep 2 records, got %d", len(got))
	}
	if got, _ := s.Records(ctx, "sess-c"); len(got) != 1 {
		t.Errorf("expected sess-c to have 1 record, got %d", len(got))
	}
}

func TestDiscard(t *testing.T) {
	var s transcript.Store = transcript.Discard{}
	if err := s.Archive(context.Background(), makeRecord("x", 1)); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err := s.Records(context.Background(), "x")
	if err != nil || len(got) != 0 {
		t.Errorf("Records = %v, %v", got, err)
	}
}
