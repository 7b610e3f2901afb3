package config

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

const pollInterval = 60 * time.Second

// StartWatcher reloads the config when the file changes. fsnotify is the
// primary mechanism; a slow polling loop always runs as a safety net for
// editors that replace the file instead of writing it.
func (m *Manager) StartWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false

	if err != nil {
		log.Printf("Config Watcher: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(m.path); err != nil {
		log.Printf("Config Watcher: failed to watch %s (%v), falling back to polling", m.path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						log.Println("Config Watcher: file changed, reloading")
						time.Sleep(100 * time.Millisecond)
						if err := m.Reload(); err != nil {
							log.Printf("[ERROR] Config Watcher: reload failed: %v", err)
						}
					}
				case werr, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("[ERROR] Config Watcher: %v", werr)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Reload(); err != nil {
					log.Printf("[ERROR] Config Watcher: poll reload failed: %v", err)
				}
			}
		}
	}()
}
