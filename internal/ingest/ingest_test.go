package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/kv"
	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
)

type fakeUploader struct {
	mu   sync.Mutex
	reqs []reports.UploadRequest
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, req reports.UploadRequest) (entity.HealthReport, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return entity.HealthReport{}, u.err
	}
	u.reqs = append(u.reqs, req)
	return entity.HealthReport{ID: fmt.Sprintf("rep-%d", len(u.reqs)), PetID: req.PetID}, nil
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.reqs)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDropFolder_IngestPath(t *testing.T) {
	root := t.TempDir()
	up := &fakeUploader{}
	d := NewDropFolder(root, up, nil, nil)

	p := filepath.Join(root, "pet-42", "bloods.txt")
	writeFile(t, p, "Sodium: 145 mmol/L ref 140-155")

	res, err := d.IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "pet-42", res.PetID)
	assert.Equal(t, "rep-1", res.ReportID)
	assert.False(t, res.Deduplicated)
	assert.Len(t, res.HashHex, 64)

	require.Len(t, up.reqs, 1)
	assert.Equal(t, "bloods.txt", up.reqs[0].Filename)
	assert.Equal(t, "text/plain", up.reqs[0].MIMEType)
	assert.Equal(t, "pet-42", up.reqs[0].PetID)

	// Same content under another name is skipped.
	dup := filepath.Join(root, "pet-42", "copy.txt")
	writeFile(t, dup, "Sodium: 145 mmol/L ref 140-155")
	res, err = d.IngestPath(context.Background(), dup)
	require.NoError(t, err)
	assert.True(t, res.Deduplicated)
	assert.Equal(t, "rep-1", res.ReportID)
	assert.Equal(t, 1, up.count())

	// Same content for a different pet is a new report.
	other := filepath.Join(root, "pet-7", "bloods.txt")
	writeFile(t, other, "Sodium: 145 mmol/L ref 140-155")
	res, err = d.IngestPath(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, 2, up.count())
}

func TestDropFolder_SeenSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	seen := kv.NewMemoryStore()
	p := filepath.Join(root, "pet1", "scan.txt")
	writeFile(t, p, "hello")

	first := &fakeUploader{}
	_, err := NewDropFolder(root, first, seen, nil).IngestPath(context.Background(), p)
	require.NoError(t, err)

	second := &fakeUploader{}
	res, err := NewDropFolder(root, second, seen, nil).IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, res.Deduplicated)
	assert.Zero(t, second.count())
}

func TestDropFolder_Rejects(t *testing.T) {
	root := t.TempDir()
	d := NewDropFolder(root, &fakeUploader{}, nil, nil)

	loose := filepath.Join(root, "loose.txt")
	writeFile(t, loose, "x")
	_, err := d.IngestPath(context.Background(), loose)
	assert.Error(t, err, "files directly under root have no pet")

	doc := filepath.Join(root, "pet1", "notes.docx")
	writeFile(t, doc, "x")
	_, err = d.IngestPath(context.Background(), doc)
	assert.ErrorContains(t, err, "unsupported")

	outside := filepath.Join(t.TempDir(), "pet1", "a.txt")
	writeFile(t, outside, "x")
	_, err = d.IngestPath(context.Background(), outside)
	assert.Error(t, err)
}

func TestDropFolder_UploadErrorNotRemembered(t *testing.T) {
	root := t.TempDir()
	up := &fakeUploader{err: errors.New("ocr failure")}
	d := NewDropFolder(root, up, nil, nil)
	p := filepath.Join(root, "pet1", "a.png")
	writeFile(t, p, "not really a png")

	_, err := d.IngestPath(context.Background(), p)
	require.Error(t, err)

	up.err = nil
	res, err := d.IngestPath(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
}

func TestDropFolder_IngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pet1", "a.txt"), "a")
	writeFile(t, filepath.Join(root, "pet1", "b.pdf"), "b")
	writeFile(t, filepath.Join(root, "pet1", "a-copy.txt"), "a")
	writeFile(t, filepath.Join(root, "pet2", "ignored.docx"), "c")
	writeFile(t, filepath.Join(root, "pet2", ".hidden", "x.txt"), "d")
	writeFile(t, filepath.Join(root, "orphan.txt"), "e")

	up := &fakeUploader{}
	results, stats, err := NewDropFolder(root, up, nil, nil).IngestDirectory(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(1), stats.Failed, "orphan file has no pet folder")
	assert.Len(t, results, 4)
	assert.Equal(t, 2, up.count())
}

func TestStartWatcher_EmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "pet1", "old.txt")
	writeFile(t, existing, "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(3 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, existing, next())

	fresh := filepath.Join(root, "pet1", "new.pdf")
	writeFile(t, fresh, "%PDF")
	assert.Equal(t, fresh, next())

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
