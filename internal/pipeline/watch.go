package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"genealogic/internal/analysis"
	"genealogic/internal/crawler"
)

const DefaultDebounce = 200 * time.Millisecond

// Update is delivered after every batch the watcher runs.
type Update struct {
	Analysis *Analysis
	Impact   *analysis.ImpactReport

	// Changed are the headers whose events triggered the batch; empty for
	// the initial run.
	Changed []string

	// Err is set when the batch failed; Analysis then holds the last good one.
	Err error
}

// Watch analyzes root once and again whenever matching headers change,
// delivering each outcome to onUpdate. Events closer together than
// debounce are folded into one batch. It returns when ctx is done.
func (p *Pipeline) Watch(ctx context.Context, root string, opts crawler.Options, debounce time.Duration, onUpdate func(Update)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	c := crawler.NewCrawler(opts, p.logger)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := addRecursive(w, root); err != nil {
		return err
	}

	var prev *Analysis
	run := func(changed []string) {
		next, err := p.AnalyzeDir(ctx, root, opts)
		if err != nil {
			p.logger.Warn("analysis failed", "root", root, "error", err)
			onUpdate(Update{Analysis: prev, Changed: changed, Err: err})
			return
		}
		u := Update{Analysis: next, Changed: changed}
		if prev != nil {
			u.Impact = analysis.NewAnalyzer(next.Graph).AnalyzeImpact(prev.Graph, changed)
		}
		prev = next
		onUpdate(u)
	}
	run(nil)

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(w, event.Name); err != nil {
						p.logger.Warn("cannot watch directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) || !c.Wants(root, event.Name) {
				continue
			}
			p.logger.Debug("header changed", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			run(changed)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watcher error", "error", err)
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != root && (name == ".git" || name == "node_modules") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
