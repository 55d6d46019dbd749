package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/models"
)

const defaultSettle = 500 * time.Millisecond

// FolderWatcher ingests files dropped into <root>/<workspace_id>/ into that
// workspace. Only files created or written while the watcher runs are picked
// up; existing files are left alone.
type FolderWatcher struct {
	root   string
	ingest IngestService
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*pendingIngest
	gen     uint64
	hashes  map[string]string
	wg      sync.WaitGroup
}

// pendingIngest is a debounce timer tagged with the generation that armed it.
type pendingIngest struct {
	timer *time.Timer
	gen   uint64
}

// NewFolderWatcher watches root for workspace folders and feeds settled files to ingest.
func NewFolderWatcher(root string, ingest IngestService) *FolderWatcher {
	return &FolderWatcher{
		root:    filepath.Clean(root),
		ingest:  ingest,
		settle:  defaultSettle,
		pending: make(map[string]*pendingIngest),
		hashes:  make(map[string]string),
	}
}

// WatchDirectory blocks until ctx is cancelled, ingesting files as they settle.
func (w *FolderWatcher) WatchDirectory(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("failed to create watch dir %s: %w", w.root, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", w.root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addWorkspaceDir(watcher, filepath.Join(w.root, e.Name()))
		}
	}
	logger.Info("watching directory for uploads", "dir", w.root)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", "error", err)
		case <-ctx.Done():
			w.stopPending()
			w.wg.Wait()
			logger.Info("file watcher stopped", "dir", w.root)
			return nil
		}
	}
}

func (w *FolderWatcher) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if filepath.Dir(event.Name) == w.root {
			w.addWorkspaceDir(watcher, event.Name)
		}
		return
	}
	if _, ok := WorkspaceForPath(w.root, event.Name); !ok || !isSupportedFile(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

func (w *FolderWatcher) addWorkspaceDir(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		logger.Warn("failed to watch workspace dir", "dir", dir, "error", err)
		return
	}
	logger.Debug("watching workspace dir", "dir", dir)
}

// schedule debounces bursts of write events for the same path.
func (w *FolderWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(ctx, path)
}

// scheduleLocked requires w.mu. A timer is only re-armed while it has not
// fired; once it has, its callback owns the WaitGroup slot and a new timer is
// started with its own.
func (w *FolderWatcher) scheduleLocked(ctx context.Context, path string) {
	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(w.settle)
		return
	}
	w.gen++
	gen := w.gen
	w.wg.Add(1)
	w.pending[path] = &pendingIngest{
		gen:   gen,
		timer: time.AfterFunc(w.settle, func() { w.fire(ctx, path, gen) }),
	}
}

func (w *FolderWatcher) fire(ctx context.Context, path string, gen uint64) {
	defer w.wg.Done()
	w.mu.Lock()
	if p, ok := w.pending[path]; ok && p.gen == gen {
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := w.IngestPath(ctx, path); err != nil {
		logger.Error("failed to ingest watched file", "path", path, "error", err)
	}
}

func (w *FolderWatcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

// IngestPath ingests one file under the root into its workspace. A file whose
// content is unchanged since its last ingest in this process is skipped.
func (w *FolderWatcher) IngestPath(ctx context.Context, path string) (int, error) {
	workspaceID, ok := WorkspaceForPath(w.root, path)
	if !ok {
		return 0, fmt.Errorf("%s is not inside a workspace folder of %s", path, w.root)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	hash := calculateHash(data)
	w.mu.Lock()
	unchanged := w.hashes[path] == hash
	w.mu.Unlock()
	if unchanged {
		logger.Debug("file unchanged since last ingest", "path", path)
		return 0, nil
	}

	file := models.UploadedFile{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}
	n, err := w.ingest.Ingest(ctx, workspaceID, []models.UploadedFile{file})
	if err != nil {
		return n, err
	}
	w.mu.Lock()
	w.hashes[path] = hash
	w.mu.Unlock()
	logger.Info("watched file ingested", "workspace_id", workspaceID, "filename", file.Filename, "chunks", n)
	return n, nil
}

// WorkspaceForPath returns the workspace a file belongs to: the name of its
// parent directory, which must sit directly under root.
func WorkspaceForPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || parts[0] == "." || parts[0] == ".." || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0], true
}

func isSupportedFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".tmp", ".swp", ".part", ".crdownload":
		return false
	default:
		return true
	}
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
