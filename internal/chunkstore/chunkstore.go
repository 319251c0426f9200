package chunkstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ai-studykit-be/internal/apperr"
	"ai-studykit-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Store stages uploaded chunks on the filesystem, one directory per session,
// one zero-padded file per index. Chunks are owned by their session until
// Assemble reclaims them or the TTL sweep removes an abandoned directory.
type Store struct {
	stagingDir   string
	blobDir      string
	maxChunkSize int64
	maxChunks    int
	log          logger.ILogger
}

func New(stagingDir, blobDir string, maxChunkSize int64, maxChunks int, log logger.ILogger) *Store {
	return &Store{
		stagingDir:   stagingDir,
		blobDir:      blobDir,
		maxChunkSize: maxChunkSize,
		maxChunks:    maxChunks,
		log:          log,
	}
}

func (s *Store) sessionDir(sessionId uuid.UUID) string {
	return filepath.Join(s.stagingDir, sessionId.String())
}

func (s *Store) chunkPath(sessionId uuid.UUID, index int) string {
	return filepath.Join(s.sessionDir(sessionId), fmt.Sprintf("%06d.part", index))
}

// Begin validates the declared shape of the upload and creates the staging
// directory. TotalSize is bounded by totalChunks * maxChunkSize because the
// client may only estimate; per-chunk writes enforce the real ceiling.
func (s *Store) Begin(sessionId uuid.UUID, totalChunks int, totalSize int64) error {
	if totalChunks < 1 || totalChunks > s.maxChunks {
		return apperr.InvalidInput("total_chunks must be in [1, %d], got %d", s.maxChunks, totalChunks)
	}
	if totalSize <= 0 || totalSize > int64(totalChunks)*s.maxChunkSize {
		return apperr.InvalidInput("total_size %d exceeds %d chunks x %d bytes", totalSize, totalChunks, s.maxChunkSize)
	}
	if err := os.MkdirAll(s.sessionDir(sessionId), 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create staging dir", err)
	}
	return nil
}

// PutChunk writes one chunk. Re-submitting an index overwrites atomically via
// a temp file rename, so the latest bytes always win.
func (s *Store) PutChunk(sessionId uuid.UUID, index, totalChunks int, data []byte) error {
	if index < 0 || index >= totalChunks {
		return apperr.New(apperr.KindOutOfRange, fmt.Sprintf("chunk index %d outside [0, %d)", index, totalChunks))
	}
	if int64(len(data)) > s.maxChunkSize {
		return apperr.InvalidInput("chunk of %d bytes exceeds max %d", len(data), s.maxChunkSize)
	}

	dir := s.sessionDir(sessionId)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound("no staging area for session %s", sessionId)
		}
		return apperr.Wrap(apperr.KindStorage, "stat staging dir", err)
	}

	tmp, err := os.CreateTemp(dir, "chunk-*")
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "create temp chunk", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperr.Wrap(apperr.KindStorage, "write chunk", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperr.Wrap(apperr.KindStorage, "close chunk", err)
	}
	if err := os.Rename(tmp.Name(), s.chunkPath(sessionId, index)); err != nil {
		os.Remove(tmp.Name())
		return apperr.Wrap(apperr.KindStorage, "commit chunk", err)
	}
	return nil
}

// Received counts the chunk indices currently present.
func (s *Store) Received(sessionId uuid.UUID) (int, error) {
	entries, err := os.ReadDir(s.sessionDir(sessionId))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, apperr.NotFound("no staging area for session %s", sessionId)
		}
		return 0, apperr.Wrap(apperr.KindStorage, "read staging dir", err)
	}
	count := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".part" {
			count++
		}
	}
	return count, nil
}

// IsComplete checks presence cardinality only; Assemble revalidates bytes.
func (s *Store) IsComplete(sessionId uuid.UUID, totalChunks int) (bool, error) {
	received, err := s.Received(sessionId)
	if err != nil {
		return false, err
	}
	return received == totalChunks, nil
}

// Assemble concatenates chunks in strict index order into a blob file and
// removes the staging directory. It is NOT idempotent: once the staging dir
// is reclaimed, a second call fails with NotFound.
func (s *Store) Assemble(sessionId uuid.UUID, totalChunks int, declaredSize int64) (string, error) {
	dir := s.sessionDir(sessionId)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return "", apperr.NotFound("session %s already assembled or never started", sessionId)
		}
		return "", apperr.Wrap(apperr.KindStorage, "stat staging dir", err)
	}

	// Every index must be present before a single byte is written.
	for i := 0; i < totalChunks; i++ {
		if _, err := os.Stat(s.chunkPath(sessionId, i)); err != nil {
			return "", apperr.New(apperr.KindIncompleteUpload, fmt.Sprintf("missing chunk %d of %d", i, totalChunks))
		}
	}

	if err := os.MkdirAll(s.blobDir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "create blob dir", err)
	}
	blobPath := filepath.Join(s.blobDir, sessionId.String()+".bin")

	out, err := os.Create(blobPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "create blob", err)
	}

	var written int64
	for i := 0; i < totalChunks; i++ {
		in, err := os.Open(s.chunkPath(sessionId, i))
		if err != nil {
			out.Close()
			os.Remove(blobPath)
			return "", apperr.Wrap(apperr.KindStorage, fmt.Sprintf("open chunk %d", i), err)
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			os.Remove(blobPath)
			return "", apperr.Wrap(apperr.KindStorage, fmt.Sprintf("copy chunk %d", i), err)
		}
		written += n
	}
	if err := out.Close(); err != nil {
		os.Remove(blobPath)
		return "", apperr.Wrap(apperr.KindStorage, "close blob", err)
	}

	// Size drift is tolerated: clients estimate total_size before chunking.
	if written != declaredSize {
		s.log.Warn("chunkstore", "assembled size differs from declared size", map[string]interface{}{
			"session_id": sessionId,
			"declared":   declaredSize,
			"assembled":  written,
		})
	}

	if err := os.RemoveAll(dir); err != nil {
		s.log.Warn("chunkstore", "failed to reclaim staging dir", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	return blobPath, nil
}

// RemoveSession deletes both staged chunks and any assembled blob.
func (s *Store) RemoveSession(sessionId uuid.UUID) error {
	if err := os.RemoveAll(s.sessionDir(sessionId)); err != nil {
		return apperr.Wrap(apperr.KindStorage, "remove staging dir", err)
	}
	blobPath := filepath.Join(s.blobDir, sessionId.String()+".bin")
	if err := os.Remove(blobPath); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.KindStorage, "remove blob", err)
	}
	return nil
}

// SweepExpired removes staging directories untouched for longer than ttl and
// returns the session ids it reclaimed.
func (s *Store) SweepExpired(ttl time.Duration) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindStorage, "read staging root", err)
	}

	cutoff := time.Now().Add(-ttl)
	var reclaimed []uuid.UUID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.stagingDir, e.Name())); err != nil {
			s.log.Warn("chunkstore", "sweep failed for session", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
			continue
		}
		reclaimed = append(reclaimed, id)
	}
	return reclaimed, nil
}
