package experiment

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
)

const (
	checkpointExt = ".bbcv"
	lockExt       = ".lock"
)

// FileStore keeps one checkpoint file per key in a directory.
//
// A write holds an exclusive lock file for the key, writes the frame to a
// temporary file, fsyncs it and publishes it with a hard link, which fails
// instead of replacing an existing checkpoint. The temporary file and the
// lock are removed on every exit path, so a crash can leave at most a
// stale lock, never a partial checkpoint.
type FileStore struct {
	dir       string
	staleLock time.Duration
	logger    log.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithStaleLockAfter lets a writer break a lock older than d, left behind
// by a killed process. Zero (the default) never breaks locks.
func WithStaleLockAfter(d time.Duration) FileStoreOption {
	return func(s *FileStore) { s.staleLock = d }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l log.Logger) FileStoreOption {
	return func(s *FileStore) { s.logger = l }
}

// NewFileStore opens (creating if needed) a checkpoint directory.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewCheckpointError("open", dir, err)
	}
	s := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLogger()
	}
	s.logger = s.logger.With(log.OperationKey, log.OperationCheckpoint)
	return s, nil
}

// Dir returns the checkpoint directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the checkpoint file of key. Pipeline ids are sanitised for
// the file system; the hash suffix keeps sanitised ids apart.
func (s *FileStore) Path(key Key) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, key.PipelineID)
	name := fmt.Sprintf("experiment_%d_%s_%08x%s", key.Seed, safe,
		uint32(xxhash.Sum64String(key.PipelineID)), checkpointExt)
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Exists(key Key) (bool, error) {
	_, err := os.Stat(s.Path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, errors.NewCheckpointError("stat", key.String(), err)
	}
}

func (s *FileStore) Read(key Key) (*Record, error) {
	return s.readFile(s.Path(key), key.String())
}

func (s *FileStore) readFile(path, name string) (*Record, error) {
	frame, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewCheckpointError("read", name, errors.ErrCheckpointNotFound)
	}
	if err != nil {
		return nil, errors.NewCheckpointError("read", name, err)
	}
	rec, err := decodeRecord(frame)
	if err != nil {
		return nil, errors.NewCheckpointError("read", name, err)
	}
	return rec, nil
}

func (s *FileStore) Write(key Key, rec *Record) error {
	path := s.Path(key)
	unlock, err := s.lock(path + lockExt)
	if err != nil {
		return errors.NewCheckpointError("lock", key.String(), err)
	}
	defer unlock()

	if _, statErr := os.Stat(path); statErr == nil {
		return errors.NewCheckpointError("write", key.String(), errors.ErrCheckpointExists)
	}

	frame, err := encodeRecord(rec)
	if err != nil {
		return errors.NewCheckpointError("encode", key.String(), err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewCheckpointError("write", key.String(), err)
	}
	// after a successful link the checkpoint has its own directory entry
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(frame); err != nil {
		tmp.Close()
		return errors.NewCheckpointError("write", key.String(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.NewCheckpointError("sync", key.String(), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewCheckpointError("write", key.String(), err)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errors.NewCheckpointError("publish", key.String(), errors.ErrCheckpointExists)
		}
		return errors.NewCheckpointError("publish", key.String(), err)
	}
	s.syncDir()
	s.logger.Debug("Checkpoint written", log.CheckpointKeyKey, key.String(), "path", path)
	return nil
}

// lock creates path exclusively and returns its release function.
func (s *FileStore) lock(path string) (func(), error) {
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if attempt > 0 || !s.breakStaleLock(path) {
			return nil, errors.WithStack(errors.ErrCheckpointLocked)
		}
	}
}

func (s *FileStore) breakStaleLock(path string) bool {
	if s.staleLock <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) < s.staleLock {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	s.logger.Warn("Removed stale checkpoint lock", "path", path, "age", time.Since(info.ModTime()).String())
	return true
}

func (s *FileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

// List reads every checkpoint in the directory, ordered by key.
func (s *FileStore) List() ([]*Record, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "experiment_*"+checkpointExt))
	if err != nil {
		return nil, errors.NewCheckpointError("list", s.dir, err)
	}
	records := make([]*Record, 0, len(matches))
	for _, m := range matches {
		rec, err := s.readFile(m, filepath.Base(m))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	SortRecords(records)
	return records, nil
}

// SortRecords orders records by pipeline id, then seed.
func SortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Key, records[j].Key
		if a.PipelineID != b.PipelineID {
			return a.PipelineID < b.PipelineID
		}
		return a.Seed < b.Seed
	})
}
