// Package storage implements the group-partitioned blob-with-metadata
// store (C1): atomic writes, group-scoped listing, purge, and total size,
// backed by a local filesystem layout of <root>/<group>/<guid>.<ext> plus
// one JSON metadata index per group.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/parrisma/gofr-doc/internal/model"
)

// Store is a filesystem-backed implementation of the C1 contract.
type Store struct {
	root string

	groupMu   sync.Mutex
	groupLock map[string]*sync.Mutex
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root, groupLock: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lockFor(group string) *sync.Mutex {
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	m, ok := s.groupLock[group]
	if !ok {
		m = &sync.Mutex{}
		s.groupLock[group] = m
	}
	return m
}

func (s *Store) groupDir(group string) string {
	return filepath.Join(s.root, group)
}

func (s *Store) indexPath(group string) string {
	return filepath.Join(s.groupDir(group), "metadata.json")
}

func (s *Store) lockFilePath(group string) string {
	return filepath.Join(s.groupDir(group), ".lock")
}

// acquireAdvisoryLock creates a sentinel lock file guarding the group
// directory against concurrent writers from other processes. It retries
// briefly before giving up, and treats a lock older than staleAfter as
// abandoned.
func (s *Store) acquireAdvisoryLock(group string, staleAfter time.Duration) (release func(), err error) {
	path := s.lockFilePath(group)

	deadline := time.Now().Add(2 * time.Second)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && staleAfter > 0 && time.Since(info.ModTime()) > staleAfter {
			os.Remove(path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("storage lock for group %q held by another process", group)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type index struct {
	Entries map[string]model.BlobMetadata `json:"entries"`
}

// loadIndex reads the group's metadata index, recovering from corruption
// by re-initializing an empty index and reconciling against the
// filesystem (spec.md §4.1 failure semantics).
func (s *Store) loadIndex(group string) (*index, error) {
	path := s.indexPath(group)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &index{Entries: map[string]model.BlobMetadata{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata index: %w", err)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		slog.Warn("storage metadata index corrupt, rebuilding from filesystem scan", "group", group, "error", err)
		return s.rebuildIndex(group)
	}
	if idx.Entries == nil {
		idx.Entries = map[string]model.BlobMetadata{}
	}
	return &idx, nil
}

// rebuildIndex scans the group directory for blob files and reconstructs
// whatever metadata can be inferred (format from extension, size and
// mtime from stat). Only blob files found on disk are re-entered; the
// extra metadata of the lost index (such as artifact_type) is not
// recovered, and nothing is logged per file.
func (s *Store) rebuildIndex(group string) (*index, error) {
	idx := &index{Entries: map[string]model.BlobMetadata{}}

	entries, err := os.ReadDir(s.groupDir(group))
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("scan group directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "metadata.json" || name == ".lock" {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		guid := strings.TrimSuffix(name, filepath.Ext(name))

		info, err := e.Info()
		if err != nil {
			continue
		}
		idx.Entries[guid] = model.BlobMetadata{
			GUID:      guid,
			Group:     group,
			Format:    ext,
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		}
	}

	return idx, nil
}

func (s *Store) saveIndex(group string, idx *index) error {
	dir := s.groupDir(group)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create group directory: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp metadata file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp metadata file: %w", err)
	}

	if err := os.Rename(tmpPath, s.indexPath(group)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata index: %w", err)
	}
	return nil
}

// Save writes a blob atomically under a group-scoped path and records its
// metadata in the group's index.
func (s *Store) Save(ctx context.Context, group, format string, data []byte, extra map[string]any) (string, error) {
	mu := s.lockFor(group)
	mu.Lock()
	defer mu.Unlock()

	release, err := s.acquireAdvisoryLock(group, 0)
	if err != nil {
		return "", model.NewError(model.KindInternalError, err.Error(), "retry shortly", nil)
	}
	defer release()

	dir := s.groupDir(group)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create group directory: %w", err)
	}

	guid := strings.ToLower(ulid.Make().String())
	finalPath := filepath.Join(dir, guid+"."+format)

	tmp, err := os.CreateTemp(dir, ".blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp blob file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp blob file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp blob file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename blob file: %w", err)
	}

	idx, err := s.loadIndex(group)
	if err != nil {
		os.Remove(finalPath)
		return "", err
	}

	idx.Entries[guid] = model.BlobMetadata{
		GUID:      guid,
		Group:     group,
		Format:    format,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
		Extra:     extra,
	}

	if err := s.saveIndex(group, idx); err != nil {
		os.Remove(finalPath)
		return "", err
	}

	return guid, nil
}

// Get returns a blob's bytes, format, and metadata. Returns NotFound if
// absent or if group does not match the stored owner (I8, no enumeration).
func (s *Store) Get(ctx context.Context, guid, group string) ([]byte, string, model.BlobMetadata, error) {
	idx, err := s.loadIndex(group)
	if err != nil {
		return nil, "", model.BlobMetadata{}, err
	}

	meta, ok := idx.Entries[guid]
	if !ok || meta.Group != group {
		return nil, "", model.BlobMetadata{}, model.ErrNotFound(model.KindNotFound, fmt.Sprintf("blob %q not found", guid))
	}

	path := filepath.Join(s.groupDir(group), guid+"."+meta.Format)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, "", model.BlobMetadata{}, model.ErrNotFound(model.KindNotFound, fmt.Sprintf("blob %q bytes missing", guid))
	}
	if err != nil {
		return nil, "", model.BlobMetadata{}, fmt.Errorf("read blob: %w", err)
	}

	return data, meta.Format, meta, nil
}

// List returns metadata entries for a group, optionally filtered. Never
// returns blob bytes.
func (s *Store) List(ctx context.Context, group string, filter func(model.BlobMetadata) bool) ([]model.BlobMetadata, error) {
	idx, err := s.loadIndex(group)
	if err != nil {
		return nil, err
	}

	out := make([]model.BlobMetadata, 0, len(idx.Entries))
	for _, meta := range idx.Entries {
		if filter == nil || filter(meta) {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a blob and its metadata entry. Idempotent.
func (s *Store) Delete(ctx context.Context, guid, group string) error {
	mu := s.lockFor(group)
	mu.Lock()
	defer mu.Unlock()

	release, err := s.acquireAdvisoryLock(group, 0)
	if err != nil {
		return model.NewError(model.KindInternalError, err.Error(), "retry shortly", nil)
	}
	defer release()

	idx, err := s.loadIndex(group)
	if err != nil {
		return err
	}

	meta, ok := idx.Entries[guid]
	if ok {
		os.Remove(filepath.Join(s.groupDir(group), guid+"."+meta.Format))
		delete(idx.Entries, guid)
		if err := s.saveIndex(group, idx); err != nil {
			return err
		}
	}

	return nil
}

// Purge deletes blobs older than ageDays, optionally scoped by group and a
// metadata predicate, and returns the deletion count.
func (s *Store) Purge(ctx context.Context, ageDays int, group string, predicate func(model.BlobMetadata) bool) (int, error) {
	groups := []string{group}
	if group == "" {
		var err error
		groups, err = s.listGroups()
		if err != nil {
			return 0, err
		}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -ageDays)
	deleted := 0

	for _, g := range groups {
		mu := s.lockFor(g)
		mu.Lock()

		idx, err := s.loadIndex(g)
		if err != nil {
			mu.Unlock()
			return deleted, err
		}

		changed := false
		for guid, meta := range idx.Entries {
			if meta.CreatedAt.After(cutoff) {
				continue
			}
			if predicate != nil && !predicate(meta) {
				continue
			}
			os.Remove(filepath.Join(s.groupDir(g), guid+"."+meta.Format))
			delete(idx.Entries, guid)
			deleted++
			changed = true
		}

		if changed {
			if err := s.saveIndex(g, idx); err != nil {
				mu.Unlock()
				return deleted, err
			}
		}
		mu.Unlock()
	}

	return deleted, nil
}

// TotalSize sums blob sizes, optionally scoped by group and predicate.
func (s *Store) TotalSize(ctx context.Context, group string, predicate func(model.BlobMetadata) bool) (int64, error) {
	groups := []string{group}
	if group == "" {
		var err error
		groups, err = s.listGroups()
		if err != nil {
			return 0, err
		}
	}

	var total int64
	for _, g := range groups {
		idx, err := s.loadIndex(g)
		if err != nil {
			return 0, err
		}
		for _, meta := range idx.Entries {
			if predicate == nil || predicate(meta) {
				total += meta.Size
			}
		}
	}
	return total, nil
}

// DeleteOldestUntil deletes proxy-scoped (or predicate-matched) blobs
// across groups, oldest-first by created_at, until total size is at or
// under threshold or the candidate list is exhausted. Used by the
// housekeeper (C9). Returns the GUIDs deleted, in deletion order.
func (s *Store) DeleteOldestUntil(ctx context.Context, threshold int64, predicate func(model.BlobMetadata) bool) ([]string, error) {
	groups, err := s.listGroups()
	if err != nil {
		return nil, err
	}

	type candidate struct {
		group string
		meta  model.BlobMetadata
	}
	var all []candidate
	var total int64

	for _, g := range groups {
		idx, err := s.loadIndex(g)
		if err != nil {
			return nil, err
		}
		for _, meta := range idx.Entries {
			if predicate != nil && !predicate(meta) {
				continue
			}
			all = append(all, candidate{group: g, meta: meta})
			total += meta.Size
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].meta.CreatedAt.Before(all[j].meta.CreatedAt) })

	var deletedGUIDs []string
	for _, c := range all {
		if total <= threshold {
			break
		}
		if err := s.Delete(ctx, c.meta.GUID, c.group); err != nil {
			return deletedGUIDs, err
		}
		total -= c.meta.Size
		deletedGUIDs = append(deletedGUIDs, c.meta.GUID)
	}

	return deletedGUIDs, nil
}

func (s *Store) listGroups() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var groups []string
	for _, e := range entries {
		if e.IsDir() {
			groups = append(groups, e.Name())
		}
	}
	return groups, nil
}
