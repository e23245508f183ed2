package services

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const seedReloadDebounce = 500 * time.Millisecond

// WatchKnowledgeSeed re-applies the seed file whenever it changes, until ctx
// is cancelled. It blocks; run it in its own goroutine.
func WatchKnowledgeSeed(ctx context.Context, filePath string, store *KnowledgeStore) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Failed to get absolute path for %s: %v", filePath, err)
		return
	}

	// Watch the directory containing the file (editors replace files on save)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Failed to watch directory %s: %v", dir, err)
		return
	}

	log.Printf("👁️  [KNOWLEDGE] Watching %s for changes (hot-reload enabled)", filePath)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(seedReloadDebounce, func() {
				reloadKnowledgeSeed(ctx, absPath, store)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  [KNOWLEDGE] File watcher error: %v", err)
		}
	}
}

func reloadKnowledgeSeed(ctx context.Context, path string, store *KnowledgeStore) {
	if ctx.Err() != nil {
		return
	}

	log.Printf("🔄 [KNOWLEDGE] Detected changes in %s, re-seeding...", path)

	seed, err := LoadKnowledgeSeedFile(path)
	if err != nil {
		log.Printf("❌ [KNOWLEDGE] Ignoring invalid seed file: %v", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := store.UpsertSeed(opCtx, seed); err != nil {
		log.Printf("❌ [KNOWLEDGE] Failed to apply seed file: %v", err)
		return
	}
	log.Printf("✅ [KNOWLEDGE] Applied %d tips and %d products from %s", len(seed.Tips), len(seed.Products), path)
}
