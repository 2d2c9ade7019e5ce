package store

import "testing"

func TestLastGCAtIsZeroBeforeFirstRun(t *testing.T) {
	s := openTestStore(t)
	if !s.LastGCAt().IsZero() {
		t.Fatalf("expected zero time before any GC run")
	}
}

func TestGarbageCollectLearningsRecordsGCRun(t *testing.T) {
	s := openTestStore(t)
	s.GarbageCollectLearnings(0.1)
	if s.LastGCAt().IsZero() {
		t.Fatalf("expected GarbageCollectLearnings to stamp last_gc_at")
	}
}

func TestPendingGCCountReflectsThreshold(t *testing.T) {
	s := openTestStore(t)
	s.EnsureSession("s1", "projA", "")
	s.InsertLearning(Learning{SessionID: "s1", ProjectPath: "projA", Learning: "a", RelevanceScore: 0.5})
	s.InsertLearning(Learning{SessionID: "s1", ProjectPath: "projA", Learning: "b", RelevanceScore: 0.05})

	if n := s.PendingGCCount(0.1); n != 1 {
		t.Fatalf("expected 1 learning pending removal below 0.1, got %d", n)
	}
	if n := s.PendingGCCount(0.6); n != 2 {
		t.Fatalf("expected 2 learnings pending removal below 0.6, got %d", n)
	}
}

func TestFTSParityCheckReportsNoDriftByDefault(t *testing.T) {
	s := openTestStore(t)
	s.EnsureSession("s1", "projA", "")
	s.InsertLearning(Learning{SessionID: "s1", ProjectPath: "projA", Learning: "a"})
	s.InsertDecision(Decision{SessionID: "s1", ProjectPath: "projA", Decision: "d"})

	if drifted := s.FTSParityCheck(); len(drifted) != 0 {
		t.Fatalf("expected no drift via normal insert path, got %v", drifted)
	}
}
