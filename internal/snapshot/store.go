// Package snapshot keeps the last fetched copy of every feed's source
// document in a blob store, one object per feed, overwritten on refresh.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"xmlcustomizer/syndicator/internal/models"
)

// ErrNotFound is returned when a feed has no snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Metadata describes how a snapshot was captured.
type Metadata struct {
	SourceURL   string            `json:"source_url"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Validators  models.Validators `json:"validators"`
	ContentType string            `json:"content_type"`
}

// Snapshot is a stored source document.
type Snapshot struct {
	Document []byte
	Metadata Metadata
}

// Store reads and writes snapshots on an afero filesystem. The OS-backed
// store is used in production, a memory filesystem in tests.
type Store struct {
	fs afero.Fs
}

// NewStore creates a store on top of fsys.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewDiskStore creates a store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir %s: %w", dir, err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// Key returns the blob key of a feed's document.
func Key(feedID int64) string {
	return models.BlobKeyFor(feedID)
}

func metaKey(feedID int64) string {
	return path.Join(path.Dir(Key(feedID)), "meta.json")
}

// Get returns the snapshot of feedID or ErrNotFound.
func (s *Store) Get(ctx context.Context, feedID int64) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := afero.ReadFile(s.fs, Key(feedID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot of feed %d: %w", feedID, err)
	}

	snap := &Snapshot{Document: doc}
	raw, err := afero.ReadFile(s.fs, metaKey(feedID))
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &snap.Metadata); err != nil {
			return nil, fmt.Errorf("decoding snapshot metadata of feed %d: %w", feedID, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading snapshot metadata of feed %d: %w", feedID, err)
	}
	return snap, nil
}

// Exists reports whether feedID has a stored document.
func (s *Store) Exists(ctx context.Context, feedID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, Key(feedID))
}

// Put replaces the snapshot of feedID. The document is written to a
// temporary object first and renamed into place, so readers see either
// the old or the new document in full.
func (s *Store) Put(ctx context.Context, feedID int64, doc []byte, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if meta.ContentType == "" {
		meta.ContentType = "application/xml"
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding snapshot metadata: %w", err)
	}

	if err := s.fs.MkdirAll(path.Dir(Key(feedID)), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir of feed %d: %w", feedID, err)
	}
	if err := s.writeAtomic(Key(feedID), doc); err != nil {
		return fmt.Errorf("writing snapshot of feed %d: %w", feedID, err)
	}
	if err := s.writeAtomic(metaKey(feedID), rawMeta); err != nil {
		return fmt.Errorf("writing snapshot metadata of feed %d: %w", feedID, err)
	}
	return nil
}

// Delete removes the snapshot of feedID. Deleting a missing snapshot is
// not an error.
func (s *Store) Delete(ctx context.Context, feedID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, name := range []string{Key(feedID), metaKey(feedID)} {
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting snapshot of feed %d: %w", feedID, err)
		}
	}
	_ = s.fs.Remove(path.Dir(Key(feedID)))
	return nil
}

func (s *Store) writeAtomic(name string, data []byte) error {
	tmp := name + "." + uuid.NewString() + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}
