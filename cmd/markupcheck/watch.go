package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"markupcheck-backend/internal/console"
	"markupcheck-backend/internal/markup"
)

const debounceDelay = 300 * time.Millisecond

// watchSet tracks which paths a watch session re-checks. Files named on the
// command line match exactly; directories match any HTML file beneath them.
type watchSet struct {
	files map[string]struct{}
	dirs  []string
}

func newWatchSet(args []string) (watchSet, error) {
	set := watchSet{files: map[string]struct{}{}}
	for _, arg := range args {
		if arg == stdinName {
			return watchSet{}, fmt.Errorf("--watch cannot read standard input")
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return watchSet{}, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return watchSet{}, err
		}
		if info.IsDir() {
			set.dirs = append(set.dirs, abs)
		} else {
			set.files[abs] = struct{}{}
		}
	}
	return set, nil
}

func (s watchSet) matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if _, ok := s.files[abs]; ok {
		return true
	}
	if !isHTMLFile(abs) {
		return false
	}
	return s.coversDir(filepath.Dir(abs))
}

// watchDirs lists every directory that must be registered with the watcher.
func (s watchSet) watchDirs() ([]string, error) {
	seen := map[string]struct{}{}
	for file := range s.files {
		seen[filepath.Dir(file)] = struct{}{}
	}
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				seen[path] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(seen))
	for dir := range seen {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out, nil
}

func runWatch(cmd *cobra.Command, cfg settings, opts checkOptions, args []string) error {
	set, err := newWatchSet(args)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	dirs, err := set.watchDirs()
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &exitError{code: 2, err: fmt.Errorf("failed to create file watcher: %w", err)}
	}
	defer watcher.Close()
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return &exitError{code: 2, err: fmt.Errorf("failed to watch directory %s: %w", dir, err)}
		}
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	printer := console.NewPrinter(outFile(cmd), cfg.Color)
	analyzer := markup.Analyzer{ContextRadius: cfg.ContextRadius}

	var mu sync.Mutex
	check := func(paths []string) {
		results := analyzeInputs(ctx, analyzer, paths, nil, cfg.Workers)
		mu.Lock()
		defer mu.Unlock()
		if err := writeResults(out, printer, cfg.Format, opts.fixed, results); err != nil {
			fmt.Fprint(out, printer.FormatError("", err))
		}
	}

	fmt.Fprintf(out, "Watching %d director%s for changes. Press Ctrl+C to stop.\n", len(dirs), pluralSuffix(len(dirs)))
	if err := runCheck(cmd, cfg, opts, args); err != nil && !isThresholdExit(err) {
		return err
	}

	var (
		pendingMu sync.Mutex
		pending   = map[string]struct{}{}
		timer     *time.Timer
	)
	flush := func() {
		pendingMu.Lock()
		paths := make([]string, 0, len(pending))
		for path := range pending {
			paths = append(paths, path)
		}
		pending = map[string]struct{}{}
		pendingMu.Unlock()
		if len(paths) == 0 {
			return
		}
		sort.Strings(paths)
		check(paths)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && set.coversDir(event.Name) {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if !set.matches(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				pendingMu.Lock()
				delete(pending, event.Name)
				pendingMu.Unlock()
				fmt.Fprintf(out, "%s: removed\n", console.ToRelativePath(event.Name))
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				pendingMu.Lock()
				pending[event.Name] = struct{}{}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceDelay, flush)
				pendingMu.Unlock()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			fmt.Fprint(out, printer.FormatError("", fmt.Errorf("watcher: %w", err)))

		case <-ctx.Done():
			pendingMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			pendingMu.Unlock()
			return nil
		}
	}
}

func (s watchSet) coversDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range s.dirs {
		if within(dir, abs) {
			return true
		}
	}
	return false
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isThresholdExit(err error) bool {
	exitErr, ok := err.(*exitError)
	return ok && exitErr.code == 1 && exitErr.err == nil
}

func pluralSuffix(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
