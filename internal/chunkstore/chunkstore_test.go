package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-studykit-be/internal/apperr"
	"ai-studykit-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	return New(
		filepath.Join(base, "chunks"),
		filepath.Join(base, "blobs"),
		1024,
		10,
		logger.NewNopLogger(),
	)
}

func TestBeginValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name        string
		totalChunks int
		totalSize   int64
		wantKind    apperr.Kind
	}{
		{"valid", 3, 100, ""},
		{"zero chunks", 0, 100, apperr.KindInvalidInput},
		{"too many chunks", 11, 100, apperr.KindInvalidInput},
		{"zero size", 3, 0, apperr.KindInvalidInput},
		{"size beyond chunk capacity", 2, 3000, apperr.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Begin(uuid.New(), tt.totalChunks, tt.totalSize)
			if tt.wantKind == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			}
		})
	}
}

func TestPutChunkOutOfRange(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Begin(id, 3, 300))

	assert.Equal(t, apperr.KindOutOfRange, apperr.KindOf(s.PutChunk(id, 3, 3, []byte("x"))))
	assert.Equal(t, apperr.KindOutOfRange, apperr.KindOf(s.PutChunk(id, -1, 3, []byte("x"))))
	assert.NoError(t, s.PutChunk(id, 2, 3, []byte("x")))
}

func TestPutChunkUnknownSession(t *testing.T) {
	s := newTestStore(t)
	err := s.PutChunk(uuid.New(), 0, 3, []byte("x"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAssembleOutOfOrderSubmission(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Begin(id, 4, 8))

	// Arrival order must not matter, only index order.
	for _, idx := range []int{2, 0, 3, 1} {
		require.NoError(t, s.PutChunk(id, idx, 4, []byte(fmt.Sprintf("p%d", idx))))
	}

	complete, err := s.IsComplete(id, 4)
	require.NoError(t, err)
	assert.True(t, complete)

	blobPath, err := s.Assemble(id, 4, 8)
	require.NoError(t, err)

	data, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	assert.Equal(t, "p0p1p2p3", string(data))
}

func TestPutChunkOverwriteLastWins(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Begin(id, 1, 10))

	require.NoError(t, s.PutChunk(id, 0, 1, []byte("first")))
	require.NoError(t, s.PutChunk(id, 0, 1, []byte("second")))

	received, err := s.Received(id)
	require.NoError(t, err)
	assert.Equal(t, 1, received)

	blobPath, err := s.Assemble(id, 1, 6)
	require.NoError(t, err)
	data, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestAssembleIncomplete(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Begin(id, 3, 6))
	require.NoError(t, s.PutChunk(id, 0, 3, []byte("aa")))
	require.NoError(t, s.PutChunk(id, 2, 3, []byte("cc")))

	_, err := s.Assemble(id, 3, 6)
	assert.Equal(t, apperr.KindIncompleteUpload, apperr.KindOf(err))

	// The staging directory must survive a failed assembly.
	received, err := s.Received(id)
	require.NoError(t, err)
	assert.Equal(t, 2, received)
}

func TestAssembleTwice(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Begin(id, 1, 2))
	require.NoError(t, s.PutChunk(id, 0, 1, []byte("ab")))

	_, err := s.Assemble(id, 1, 2)
	require.NoError(t, err)

	// The staging dir is reclaimed on success, so assembly is one-shot.
	_, err = s.Assemble(id, 1, 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRemoveSession(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	require.NoError(t, s.Begin(id, 1, 2))
	require.NoError(t, s.PutChunk(id, 0, 1, []byte("ab")))
	blobPath, err := s.Assemble(id, 1, 2)
	require.NoError(t, err)

	require.NoError(t, s.RemoveSession(id))

	_, err = os.Stat(blobPath)
	assert.True(t, os.IsNotExist(err))

	// Removing an already clean session is a no-op.
	assert.NoError(t, s.RemoveSession(id))
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t)
	oldId := uuid.New()
	freshId := uuid.New()
	require.NoError(t, s.Begin(oldId, 1, 2))
	require.NoError(t, s.Begin(freshId, 1, 2))

	// Age the first directory past the cutoff.
	oldDir := s.sessionDir(oldId)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, past, past))

	reclaimed, err := s.SweepExpired(1 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{oldId}, reclaimed)

	_, err = s.Received(freshId)
	assert.NoError(t, err)
}
