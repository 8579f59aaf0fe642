package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"authrelay/pkg/logging"
)

// File-backed stores persist one JSON record per key so that the initiator
// and the callback handler can run in different processes sharing only a
// directory.
//
// SECURITY: pending records contain PKCE code verifiers. The storage
// directory is created with 0700 permissions and every record with 0600.

// pendingDirName and resultDirName are the subdirectories of the storage
// root used by the two stores.
const (
	pendingDirName = "pending"
	resultDirName  = "results"
)

// keyFilename maps a logical storage key to a filename. Keys contain ':'
// separators and caller-supplied values, so they are hashed rather than
// escaped.
func keyFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".json"
}

// writeRecord writes a JSON record with a temp-file-and-rename so readers
// never observe a partial write.
func writeRecord(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize record: %w", err)
	}
	return nil
}

func readRecord(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode record: %w", err)
	}
	return true, nil
}

// FilePendingStore is a file-backed PendingStateStore.
type FilePendingStore struct {
	dir string
}

// NewFilePendingStore creates a file-backed pending-state store rooted at
// dir (the "pending" subdirectory is created beneath it).
func NewFilePendingStore(dir string) (*FilePendingStore, error) {
	pendingDir := filepath.Join(dir, pendingDirName)
	if err := os.MkdirAll(pendingDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create pending storage directory: %w", err)
	}
	return &FilePendingStore{dir: pendingDir}, nil
}

func (s *FilePendingStore) path(key string) string {
	return filepath.Join(s.dir, keyFilename(key))
}

// Put persists the entry, overwriting any existing entry for the same key.
func (s *FilePendingStore) Put(entry *PendingState) error {
	if err := writeRecord(s.path(entry.Key()), entry); err != nil {
		return err
	}
	logging.Debug("Store", "Stored pending attempt session=%s (expires: %v)",
		logging.TruncateSessionID(entry.SessionID), entry.ExpiresAt)
	return nil
}

// Take atomically reads and removes the entry for the given state value.
// A rename claims the record first, so when two processes race over the same
// callback only one of them observes the entry.
func (s *FilePendingStore) Take(state string) (*PendingState, bool, error) {
	path := s.path(PendingKey(state))
	claimed := fmt.Sprintf("%s.%d.consumed", path, time.Now().UnixNano())

	if err := os.Rename(path, claimed); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to claim pending record: %w", err)
	}
	defer os.Remove(claimed)

	var entry PendingState
	ok, err := readRecord(claimed, &entry)
	if err != nil || !ok {
		return nil, false, err
	}
	return &entry, true, nil
}

// PutArtifact stores a secondary record tied to an attempt.
func (s *FilePendingStore) PutArtifact(key, value string, expiresAt time.Time) error {
	return writeRecord(s.path(key), &artifact{Value: value, ExpiresAt: expiresAt})
}

// GetArtifact returns a secondary record if present and unexpired.
// Expired artifacts are removed on read.
func (s *FilePendingStore) GetArtifact(key string) (string, bool, error) {
	path := s.path(key)
	var a artifact
	ok, err := readRecord(path, &a)
	if err != nil || !ok {
		return "", false, err
	}
	if a.expired(time.Now()) {
		os.Remove(path)
		return "", false, nil
	}
	return a.Value, true, nil
}

// DeleteArtifact removes a secondary record.
func (s *FilePendingStore) DeleteArtifact(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// List returns all unexpired pending attempts, removing expired ones as a
// side effect. Artifact records are skipped (they carry no state value).
func (s *FilePendingStore) List() ([]*PendingState, error) {
	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending storage directory: %w", err)
	}

	now := time.Now()
	var entries []*PendingState
	for _, name := range names {
		if name.IsDir() || !strings.HasSuffix(name.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, name.Name())
		var entry PendingState
		ok, err := readRecord(path, &entry)
		if err != nil || !ok || entry.State == "" {
			continue
		}
		if entry.Expired(now) {
			os.Remove(path)
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// FileResultStore is a file-backed ResultStore.
type FileResultStore struct {
	dir string
}

// outcomeRecord is the on-disk shape of a published outcome. The session id
// is embedded because filenames are key hashes.
type outcomeRecord struct {
	SessionID string   `json:"session_id"`
	Namespace string   `json:"namespace,omitempty"`
	Outcome   *Outcome `json:"outcome"`
}

// OutcomeRecord pairs a published outcome with the session it belongs to.
type OutcomeRecord struct {
	SessionID string
	Outcome   *Outcome
}

// NewFileResultStore creates a file-backed result store rooted at dir
// (the "results" subdirectory is created beneath it).
func NewFileResultStore(dir string) (*FileResultStore, error) {
	resultDir := filepath.Join(dir, resultDirName)
	if err := os.MkdirAll(resultDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create result storage directory: %w", err)
	}
	return &FileResultStore{dir: resultDir}, nil
}

// Dir returns the directory outcomes are written to. The initiator watches
// it to learn about new outcomes ahead of its next poll.
func (s *FileResultStore) Dir() string {
	return s.dir
}

func (s *FileResultStore) path(namespace, sessionID string) string {
	return filepath.Join(s.dir, keyFilename(OutcomeKey(namespace, sessionID)))
}

// Publish durably records the outcome under the namespace and session id.
func (s *FileResultStore) Publish(namespace, sessionID string, outcome *Outcome) error {
	rec := &outcomeRecord{SessionID: sessionID, Namespace: namespace, Outcome: outcome}
	if err := writeRecord(s.path(namespace, sessionID), rec); err != nil {
		return err
	}
	logging.Debug("Store", "Published outcome for session=%s success=%v",
		logging.TruncateSessionID(sessionID), outcome.Success)
	return nil
}

// Poll returns the outcome for the session id if present and not expired.
// Expired outcomes are removed on read.
func (s *FileResultStore) Poll(namespace, sessionID string) (*Outcome, bool, error) {
	path := s.path(namespace, sessionID)
	var rec outcomeRecord
	ok, err := readRecord(path, &rec)
	if err != nil || !ok || rec.Outcome == nil {
		return nil, false, err
	}
	if rec.Outcome.Expired(time.Now()) {
		os.Remove(path)
		return nil, false, nil
	}
	return rec.Outcome, true, nil
}

// Delete removes the outcome for the session id.
func (s *FileResultStore) Delete(namespace, sessionID string) error {
	if err := os.Remove(s.path(namespace, sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete outcome: %w", err)
	}
	return nil
}

// List returns all unexpired outcomes in the given namespace, removing stale
// ones as a side effect.
func (s *FileResultStore) List(namespace string) ([]OutcomeRecord, error) {
	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read result storage directory: %w", err)
	}

	now := time.Now()
	var records []OutcomeRecord
	for _, name := range names {
		if name.IsDir() || !strings.HasSuffix(name.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, name.Name())
		var rec outcomeRecord
		ok, err := readRecord(path, &rec)
		if err != nil || !ok || rec.Outcome == nil {
			continue
		}
		if rec.Namespace != namespace {
			continue
		}
		if rec.Outcome.Expired(now) {
			os.Remove(path)
			continue
		}
		records = append(records, OutcomeRecord{SessionID: rec.SessionID, Outcome: rec.Outcome})
	}
	return records, nil
}
