package persistence

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// FileStore is a local-filesystem Store. Session and audio-index files are
// whole-file JSON documents written via renameio.WriteFile so a crash
// mid-write never leaves a torn file on disk; audio blob files themselves
// are written once and never rewritten, so a plain os.WriteFile is
// sufficient for them — the same split drawn between FileEventStore's
// JSONL append (events/store.go) and FileBlobStore's write-once blobs
// (events/blob_store.go).
//
// Concurrent writers are not required, but FileStore nonetheless
// serializes all operations behind a single mutex so interleaved calls
// from the Controller's persistence goroutine and a foreground read (e.g.
// an export request) can never observe a half-written file.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates (if needed) the sessions/ and audio/ subdirectories
// under baseDir and returns a FileStore rooted there.
func NewFileStore(baseDir string) (*FileStore, error) {
	fs := &FileStore{baseDir: baseDir}
	for _, sub := range []string{"sessions", "audio"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), dirPerm); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	return fs, nil
}

func (fs *FileStore) sessionPath(id string) string {
	return filepath.Join(fs.baseDir, "sessions", id+".json")
}

func (fs *FileStore) audioDir(sessionID string) string {
	return filepath.Join(fs.baseDir, "audio", sessionID)
}

func (fs *FileStore) audioIndexPath(sessionID string) string {
	return filepath.Join(fs.audioDir(sessionID), "index.json")
}

func (fs *FileStore) PutSession(_ context.Context, record *SessionRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := renameio.WriteFile(fs.sessionPath(record.ID), data, filePerm); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

func (fs *FileStore) readSessionLocked(id string) (*SessionRecord, error) {
	data, err := os.ReadFile(fs.sessionPath(id)) //nolint:gosec // id is a generated uuid, not user path input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session record: %w", err)
	}
	return &rec, nil
}

func (fs *FileStore) GetSession(_ context.Context, id string) (*SessionRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.readSessionLocked(id)
	if err != nil {
		return nil, err
	}
	if rec.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (fs *FileStore) allSessionsLocked() ([]*SessionRecord, error) {
	dir := filepath.Join(fs.baseDir, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions directory: %w", err)
	}
	out := make([]*SessionRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		rec, err := fs.readSessionLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (fs *FileStore) GetAllSessions(_ context.Context) ([]*SessionRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	all, err := fs.allSessionsLocked()
	if err != nil {
		return nil, err
	}
	out := make([]*SessionRecord, 0, len(all))
	for _, rec := range all {
		if rec.DeletedAt == nil {
			out = append(out, rec)
		}
	}
	sortByUpdatedAtDesc(out)
	return out, nil
}

func (fs *FileStore) SoftDeleteSession(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.readSessionLocked(id)
	if err != nil {
		return err
	}
	now := rec.UpdatedAt
	rec.DeletedAt = &now
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := renameio.WriteFile(fs.sessionPath(id), data, filePerm); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

func (fs *FileStore) GetIncompleteSession(_ context.Context) (*SessionRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	all, err := fs.allSessionsLocked()
	if err != nil {
		return nil, err
	}
	var best *SessionRecord
	for _, rec := range all {
		if rec.DeletedAt != nil || !IsIncomplete(rec) {
			continue
		}
		if best == nil || rec.UpdatedAt > best.UpdatedAt {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

type audioIndexEntry struct {
	Hash string `json:"hash"`
	Ext  string `json:"ext"`
}

type audioIndex struct {
	MimeType string            `json:"mimeType"`
	Entries  []audioIndexEntry `json:"entries"`
}

func (fs *FileStore) readAudioIndexLocked(sessionID string) (*audioIndex, error) {
	data, err := os.ReadFile(fs.audioIndexPath(sessionID)) //nolint:gosec // sessionID is a generated uuid
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read audio index: %w", err)
	}
	var idx audioIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse audio index: %w", err)
	}
	return &idx, nil
}

func (fs *FileStore) SaveAudioChunk(_ context.Context, sessionID string, blob []byte, mimeType string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.audioDir(sessionID), dirPerm); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	hash := audioChecksum(blob)
	hashStr := hex.EncodeToString(hash[:])
	ext := extensionFromMIME(mimeType)
	blobPath := filepath.Join(fs.audioDir(sessionID), hashStr+ext)
	if _, err := os.Stat(blobPath); os.IsNotExist(err) {
		if err := os.WriteFile(blobPath, blob, filePerm); err != nil {
			return fmt.Errorf("write audio blob: %w", err)
		}
	}

	idx, err := fs.readAudioIndexLocked(sessionID)
	if err != nil {
		if err != ErrNotFound {
			return err
		}
		idx = &audioIndex{MimeType: mimeType}
	}
	idx.Entries = append(idx.Entries, audioIndexEntry{Hash: hashStr, Ext: ext})

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal audio index: %w", err)
	}
	if err := renameio.WriteFile(fs.audioIndexPath(sessionID), data, filePerm); err != nil {
		return fmt.Errorf("write audio index: %w", err)
	}
	return nil
}

func (fs *FileStore) GetAudio(_ context.Context, sessionID string) (*AudioRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	idx, err := fs.readAudioIndexLocked(sessionID)
	if err != nil {
		return nil, err
	}
	rec := &AudioRecord{SessionID: sessionID, MimeType: idx.MimeType}
	for _, entry := range idx.Entries {
		path := filepath.Join(fs.audioDir(sessionID), entry.Hash+entry.Ext)
		data, err := os.ReadFile(path) //nolint:gosec // derived from trusted index entries
		if err != nil {
			return nil, fmt.Errorf("read audio blob: %w", err)
		}
		rec.Chunks = append(rec.Chunks, data)
	}
	return rec, nil
}

func (fs *FileStore) DeleteAudio(_ context.Context, sessionID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.RemoveAll(fs.audioDir(sessionID)); err != nil {
		return fmt.Errorf("delete audio directory: %w", err)
	}
	return nil
}

func (fs *FileStore) Stats(_ context.Context) (Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	all, err := fs.allSessionsLocked()
	if err != nil {
		return Stats{}, err
	}
	sessionCount := 0
	for _, rec := range all {
		if rec.DeletedAt == nil {
			sessionCount++
		}
	}
	audioEntries, err := os.ReadDir(filepath.Join(fs.baseDir, "audio"))
	if err != nil {
		return Stats{}, fmt.Errorf("list audio directory: %w", err)
	}
	audioCount := 0
	for _, entry := range audioEntries {
		if entry.IsDir() {
			audioCount++
		}
	}
	return Stats{SessionCount: sessionCount, AudioCount: audioCount}, nil
}

func (fs *FileStore) ClearAll(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, sub := range []string{"sessions", "audio"} {
		dir := filepath.Join(fs.baseDir, sub)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s directory: %w", sub, err)
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("recreate %s directory: %w", sub, err)
		}
	}
	return nil
}

func (fs *FileStore) Close() error { return nil }

// extensionFromMIME mirrors events/blob_store.go's MIME-to-extension
// switch, narrowed to the audio formats this domain's recorder can
// plausibly produce: webm and mp4 containers.
func extensionFromMIME(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return ".m4a"
	default:
		return ".audio"
	}
}

var _ Store = (*FileStore)(nil)
