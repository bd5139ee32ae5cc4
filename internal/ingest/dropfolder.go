package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/kv"
	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
)

// seenPrefix keys ingested content hashes in the kv store.
const seenPrefix = "ingested_sha256_"

// maxFileBytes bounds a single dropped file.
const maxFileBytes = 32 << 20

// Uploader is the report intake the drop folder feeds.
type Uploader interface {
	Upload(ctx context.Context, req reports.UploadRequest) (entity.HealthReport, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	PetID        string
	ReportID     string
	Deduplicated bool
	HashHex      string
	FileExt      string
	IngestedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// DropFolder uploads files placed under <root>/<petID>/.
type DropFolder struct {
	root     string
	uploader Uploader
	seen     kv.Store
	logger   *slog.Logger

	// mu serializes the hash check and upload of one file at a time.
	mu sync.Mutex
}

// NewDropFolder uses seen to remember ingested content; nil keeps it in memory only.
func NewDropFolder(root string, uploader Uploader, seen kv.Store, logger *slog.Logger) *DropFolder {
	if logger == nil {
		logger = slog.Default()
	}
	if seen == nil {
		seen = kv.NewMemoryStore()
	}
	return &DropFolder{root: root, uploader: uploader, seen: seen, logger: logger}
}

// PetIDForPath returns the first directory under root, which names the pet.
func (d *DropFolder) PetIDForPath(path string) (string, error) {
	rootAbs, err := filepath.Abs(d.root)
	if err != nil {
		return "", fmt.Errorf("abs root: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return "", fmt.Errorf("rel path: %w", err)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == ".." || parts[0] == "." || parts[0] == "" {
		return "", fmt.Errorf("%s is not inside a pet folder of %s", path, d.root)
	}
	return parts[0], nil
}

// IngestPath uploads one dropped file unless identical content was already ingested.
func (d *DropFolder) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	ext := constants.NormalizeExt(filepath.Ext(path))
	if !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}
	out.FileExt = ext

	petID, err := d.PetIDForPath(path)
	if err != nil {
		return out, err
	}
	out.PetID = petID

	st, err := os.Stat(path)
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}
	if st.Size() > maxFileBytes {
		return out, fmt.Errorf("file too large: %d bytes", st.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	d.mu.Lock()
	defer d.mu.Unlock()

	key := seenPrefix + petID + "_" + out.HashHex
	if prev, ok, err := d.seen.Get(key); err == nil && ok {
		out.Deduplicated = true
		out.ReportID = prev
		d.logger.Info("ingest.deduplicated", "path", path, "pet_id", petID, "report_id", prev)
		return out, nil
	} else if err != nil {
		d.logger.Warn("ingest.seen_lookup_failed", "error", err)
	}

	rep, err := d.uploader.Upload(ctx, reports.UploadRequest{
		PetID:    petID,
		Filename: filepath.Base(path),
		MIMEType: constants.MIMEForExt(ext),
		Data:     data,
	})
	if err != nil {
		return out, fmt.Errorf("upload: %w", err)
	}
	out.ReportID = rep.ID
	out.IngestedAt = time.Now().UTC()

	if err := d.seen.Set(key, rep.ID); err != nil {
		d.logger.Warn("ingest.seen_store_failed", "path", path, "error", err)
	}
	d.logger.Info("ingest.uploaded", "path", path, "pet_id", petID, "report_id", rep.ID)
	return out, nil
}

// IngestDirectory walks the drop root and ingests every allowed file.
func (d *DropFolder) IngestDirectory(ctx context.Context, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(d.root) == "" {
		return nil, DirStats{}, errors.New("drop folder root is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(d.root, func(path string, de fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != d.root && IsHidden(path) {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if de.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := d.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// Run watches the drop root and ingests files as they settle, until ctx ends.
func (d *DropFolder) Run(ctx context.Context, debounce time.Duration) error {
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{d.root},
		InitialScan: true,
		Debounce:    debounce,
		Logger:      d.logger,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	d.logger.Info("ingest.watching", "root", d.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := d.IngestPath(ctx, path); err != nil {
				d.logger.Warn("ingest.failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.logger.Warn("ingest.watch_error", "error", err)
		}
	}
}

// AllowedExt checks ext against constants.AllowedExtensions.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func allowed(path string, exts map[string]struct{}) bool {
	if exts == nil {
		return AllowedExt(filepath.Ext(path))
	}
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
