package utilization

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEstimateUtilizationMissingFileIsZero(t *testing.T) {
	got := EstimateUtilization(filepath.Join(t.TempDir(), "does-not-exist.jsonl"))
	if got.Bytes != 0 || got.EstimatedTokens != 0 || got.Utilization != 0 {
		t.Fatalf("expected all zeros for missing file, got %+v", got)
	}
}

func TestEstimateUtilizationComputesRatio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	data := make([]byte, 4000)
	for i := range data {
		data[i] = 'a'
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	got := EstimateUtilization(path)
	if got.Bytes != 4000 {
		t.Errorf("expected 4000 bytes, got %d", got.Bytes)
	}
	if got.EstimatedTokens != 1000 {
		t.Errorf("expected 1000 estimated tokens, got %d", got.EstimatedTokens)
	}
	if got.Utilization <= 0 {
		t.Errorf("expected positive utilization, got %f", got.Utilization)
	}
}
