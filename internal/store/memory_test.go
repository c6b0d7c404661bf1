package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toolforge/api/internal/model"
)

func newStoredJob(id string) *model.Job {
	now := time.Now()
	return &model.Job{
		ID:     id,
		Status: model.JobStatusPending,
		Document: model.NewConstructionDocument(
			model.UserInput{Description: "tip calculator", ToolType: "calculator"},
			&model.BrainstormData{CoreConcept: "split a restaurant bill"},
		),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.Save(ctx, newStoredJob("job-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 record, got %d", st.Len())
	}

	got, err := st.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != "job-1" || got.Status != model.JobStatusPending {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Document.BrainstormData.CoreConcept != "split a restaurant bill" {
		t.Error("document did not survive the round trip")
	}
	// Empty maps must come back allocated, not nil
	if got.Document.AgentModelMapping == nil {
		t.Error("empty agentModelMapping did not survive the round trip")
	}
	if got.Document.StepStatus == nil {
		t.Error("empty stepStatus did not survive the round trip")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreReadersDoNotShareState(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	if err := st.Save(ctx, newStoredJob("job-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	first, _ := st.Get(ctx, "job-1")
	first.Status = model.JobStatusFailed
	first.Document.AssembledCode = "mutated"

	second, _ := st.Get(ctx, "job-1")
	if second.Status != model.JobStatusPending {
		t.Error("mutation of a returned record leaked into the store")
	}
	if second.Document.AssembledCode != "" {
		t.Error("mutation of a returned document leaked into the store")
	}
}

func TestMemoryLockerExclusivity(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "job-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// A second acquire on the same key blocks until release
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(blocked, "job-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a blocked acquire, got %v", err)
	}

	// Other keys are independent
	otherRelease, err := locker.Acquire(ctx, "job-2")
	if err != nil {
		t.Fatalf("acquire on other key failed: %v", err)
	}
	otherRelease()

	release()
	release2, err := locker.Acquire(ctx, "job-1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}
