package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := &RunSummary{
		GeneratedAt:         time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		Profile:             "standard",
		Mode:                "warn",
		VerifierGateOK:      true,
		PMRGateOK:           true,
		PMRScore:            96.25,
		FindingCount:        13,
		DedupEventCount:     2,
		ContractFingerprint: "sha256:abc",
	}
	id, err := s.Record(ctx, first)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	second := &RunSummary{
		GeneratedAt:         time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Profile:             "cav",
		Mode:                "error",
		VerifierGateOK:      false,
		PMRGateOK:           false,
		PMRScore:            60,
		FindingCount:        14,
		ContractFingerprint: "sha256:abc",
	}
	_, err = s.Record(ctx, second)
	require.NoError(t, err)

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "cav", runs[0].Profile, "newest first")
	assert.False(t, runs[0].VerifierGateOK)
	assert.Equal(t, 60.0, runs[0].PMRScore)

	assert.Equal(t, "standard", runs[1].Profile)
	assert.Equal(t, first.GeneratedAt, runs[1].GeneratedAt)
	assert.Equal(t, 13, runs[1].FindingCount)
}

func TestRecord_KeepsExplicitRunID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.Record(ctx, &RunSummary{
		RunID:       "run-42",
		GeneratedAt: time.Now(),
		Profile:     "standard",
		Mode:        "warn",
	})
	require.NoError(t, err)
	assert.Equal(t, "run-42", id)

	// Duplicate ids violate the primary key.
	_, err = s.Record(ctx, &RunSummary{
		RunID:       "run-42",
		GeneratedAt: time.Now(),
		Profile:     "standard",
		Mode:        "warn",
	})
	require.Error(t, err)
}

func TestList_Limit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Record(ctx, &RunSummary{
			GeneratedAt: time.Date(2026, 8, 20+i, 0, 0, 0, 0, time.UTC),
			Profile:     "standard",
			Mode:        "warn",
		})
		require.NoError(t, err)
	}

	runs, err := s.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
