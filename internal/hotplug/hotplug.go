// Package hotplug turns device-node churn under /dev into re-probe hints,
// so device changes show up before the next polling tick.
package hotplug

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of node events a single plug produces
const DefaultDebounce = 250 * time.Millisecond

var (
	// DefaultPaths are the Linux directories holding ALSA and V4L2 nodes
	DefaultPaths = []string{"/dev", "/dev/snd"}
	// DefaultPatterns match capture PCM, ALSA control and V4L2 nodes
	DefaultPatterns = []string{"video*", "controlC*", "pcmC*c"}
)

type Config struct {
	Paths    []string
	Patterns []string
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Hinter watches device directories and emits a hint after node activity settles
type Hinter struct {
	watcher  *fsnotify.Watcher
	patterns []string
	debounce time.Duration
	log      zerolog.Logger

	hints chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New starts watching every configured path that exists, defaulting to
// DefaultPaths and DefaultPatterns. Missing paths are skipped; a hinter with
// nothing to watch never emits.
func New(cfg Config) (*Hinter, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	paths := cfg.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	h := &Hinter{
		watcher:  w,
		patterns: patterns,
		debounce: debounce,
		log:      cfg.Logger,
		hints:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	watched := 0
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			h.log.Warn().Err(err).Str("path", p).Msg("Skipping hotplug path")
			continue
		}
		watched++
	}
	h.log.Debug().Int("paths", watched).Msg("Hotplug watcher ready")

	h.wg.Add(1)
	go h.run()
	return h, nil
}

// Hints delivers at most one pending hint at a time
func (h *Hinter) Hints() <-chan struct{} {
	return h.hints
}

func (h *Hinter) run() {
	defer h.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-h.done:
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !h.relevant(ev) {
				continue
			}
			h.log.Trace().Str("name", ev.Name).Str("op", ev.Op.String()).Msg("Device node event")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(h.debounce)
			}
			timerC = timer.C
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn().Err(err).Msg("Hotplug watcher error")
		case <-timerC:
			timerC = nil
			select {
			case h.hints <- struct{}{}:
			default:
				// A hint is already pending
			}
		}
	}
}

func (h *Hinter) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	for _, p := range h.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Close stops watching. The hints channel is left open so a select on it
// simply never fires again.
func (h *Hinter) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		err = h.watcher.Close()
		h.wg.Wait()
	})
	return err
}
