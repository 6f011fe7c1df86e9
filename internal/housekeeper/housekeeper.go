// Package housekeeper implements C9: a periodic, size-bounded prune of the
// blob store, ticking on the same hardloop cron runner the teacher uses for
// scheduled workflows, guarded by an on-disk advisory lock so two replicas
// never prune concurrently.
package housekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/worldline-go/hardloop"

	"github.com/parrisma/gofr-doc/internal/model"
)

// Store is the subset of internal/storage.Store the housekeeper prunes.
type Store interface {
	TotalSize(ctx context.Context, group string, predicate func(model.BlobMetadata) bool) (int64, error)
	DeleteOldestUntil(ctx context.Context, threshold int64, predicate func(model.BlobMetadata) bool) ([]string, error)
}

// Config mirrors config.Housekeeper, kept as its own type so this package
// does not import internal/config.
type Config struct {
	IntervalMinutes  int
	LockStaleSeconds int
	MaxStorageMB     int64
}

// Housekeeper owns the advisory lock file and runs one prune pass per tick.
type Housekeeper struct {
	store   Store
	cfg     Config
	lockDir string
}

// New wires a Housekeeper to store, placing its advisory lock file at
// <lockDir>/.prune_size.lock.
func New(store Store, cfg Config, lockDir string) *Housekeeper {
	return &Housekeeper{store: store, cfg: cfg, lockDir: lockDir}
}

func (h *Housekeeper) lockPath() string {
	return filepath.Join(h.lockDir, ".prune_size.lock")
}

func (h *Housekeeper) staleAfter() time.Duration {
	return time.Duration(h.cfg.LockStaleSeconds) * time.Second
}

// acquire creates the lock file exclusively, treating an existing lock
// older than staleAfter as abandoned and stealing it. Returns a release
// func that removes the lock file.
func (h *Housekeeper) acquire() (func(), error) {
	path := h.lockPath()

	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) > h.staleAfter() {
			slog.Warn("housekeeper: stale prune lock found, stealing it", "age", time.Since(info.ModTime()))
			_ = os.Remove(path)
		} else {
			return nil, fmt.Errorf("prune lock held by another process")
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("acquire prune lock: %w", err)
	}
	_ = f.Close()

	return func() { _ = os.Remove(path) }, nil
}

// Run performs one prune pass: if the total size of document-proxy blobs
// across all groups exceeds the configured threshold, deletes them
// oldest-first until at or under it, logging one event per deletion plus
// a summary. Leaves a target_unmet warning if it runs out of candidates
// before reaching the threshold.
func (h *Housekeeper) Run(ctx context.Context) error {
	release, err := h.acquire()
	if err != nil {
		slog.Info("housekeeper: skipping prune pass, lock unavailable", "error", err)
		return nil
	}
	defer release()

	thresholdBytes := h.cfg.MaxStorageMB * 1024 * 1024
	proxyOnly := func(m model.BlobMetadata) bool {
		artifactType, _ := m.Extra["artifact_type"].(string)
		return artifactType == "document_proxy"
	}

	before, err := h.store.TotalSize(ctx, "", proxyOnly)
	if err != nil {
		return fmt.Errorf("housekeeper: total size: %w", err)
	}
	if before <= thresholdBytes {
		slog.Info("housekeeper: prune pass, nothing to do", "total_bytes", before, "threshold_bytes", thresholdBytes)
		return nil
	}

	deleted, err := h.store.DeleteOldestUntil(ctx, thresholdBytes, proxyOnly)
	if err != nil {
		return fmt.Errorf("housekeeper: prune: %w", err)
	}
	for _, guid := range deleted {
		slog.Info("housekeeper: pruned proxy artefact", "guid", guid)
	}

	after, err := h.store.TotalSize(ctx, "", proxyOnly)
	if err != nil {
		return fmt.Errorf("housekeeper: total size after prune: %w", err)
	}

	slog.Info("housekeeper: prune pass complete",
		"deleted_count", len(deleted), "before_bytes", before, "after_bytes", after, "threshold_bytes", thresholdBytes)

	if after > thresholdBytes {
		slog.Warn("housekeeper: prune pass could not reach target size, ran out of candidates",
			"event", "target_unmet", "after_bytes", after, "threshold_bytes", thresholdBytes)
	}

	return nil
}

// Start registers a cron job ticking every cfg.IntervalMinutes and begins
// running it against ctx. Cancel ctx to stop.
func (h *Housekeeper) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", time.Duration(h.cfg.IntervalMinutes)*time.Minute)

	job, err := hardloop.NewCron(hardloop.Cron{
		Name:  "storage-prune",
		Specs: []string{spec},
		Func:  h.Run,
	})
	if err != nil {
		return fmt.Errorf("housekeeper: create cron runner: %w", err)
	}

	if err := job.Start(ctx); err != nil {
		return fmt.Errorf("housekeeper: start cron runner: %w", err)
	}

	slog.Info("housekeeper: started prune cron", "interval_minutes", h.cfg.IntervalMinutes, "max_storage_mb", h.cfg.MaxStorageMB)
	return nil
}

// ParseStaleDuration exists so callers configuring a manual --max-mb CLI
// invocation can reuse the same duration-parsing convention as the rest of
// the lock/interval configuration, without pulling in str2duration twice.
func ParseStaleDuration(s string) (time.Duration, error) {
	return str2duration.ParseDuration(s)
}
