// Package watch re-runs build tasks when source files change.
//
// The loop listens to file system events under the directories its rules cover, debounces
// bursts of changes and hands the matched rules to a single worker. While a rule runs, further
// changes for it are coalesced into one pending re-run: in-flight runs are never cancelled and a
// rule never queues twice.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

var ErrInvalidRule = errors.New("invalid watch rule")

// Rule runs Tasks when a file matching one of Patterns changes.
// Patterns are slash separated and relative to the watched root.
type Rule struct {
	Name     string
	Patterns []string
	Tasks    []string
}

// RunFunc runs the tasks of a rule.
type RunFunc func(ctx context.Context, rule Rule) error

// Option configures a Loop.
type Option func(*Loop)

// WithDebounce sets how long the loop waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(l *Loop) {
		if d >= 0 {
			l.debounce = d
		}
	}
}

// WithLogger sets the logger of the loop.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// Loop watches files and runs the rules they match.
type Loop struct {
	root     string
	rules    []Rule
	run      RunFunc
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	signal  chan struct{}
}

// New creates a watch loop over root.
func New(root string, rules []Rule, run RunFunc, opts ...Option) (*Loop, error) {
	if run == nil {
		return nil, errors.Wrap(ErrInvalidRule, "run function must be set")
	}

	for i, rule := range rules {
		if rule.Name == "" {
			return nil, errors.Wrapf(ErrInvalidRule, "rule %d has no name", i)
		}

		if len(rule.Patterns) == 0 || len(rule.Tasks) == 0 {
			return nil, errors.Wrapf(ErrInvalidRule, "rule %s needs patterns and tasks", rule.Name)
		}

		for _, pattern := range rule.Patterns {
			if !doublestar.ValidatePattern(pattern) {
				return nil, errors.Wrapf(ErrInvalidRule, "rule %s: invalid pattern %q", rule.Name, pattern)
			}
		}
	}

	l := &Loop{
		root:     filepath.Clean(root),
		rules:    rules,
		run:      run,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
		pending:  map[string]struct{}{},
		signal:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Match returns the rules matching the slash separated path, in declaration order.
func (l *Loop) Match(name string) []Rule {
	name = path.Clean(name)

	var res []Rule

	for _, rule := range l.rules {
		for _, pattern := range rule.Patterns {
			if ok, _ := doublestar.Match(path.Clean(pattern), name); ok {
				res = append(res, rule)

				break
			}
		}
	}

	return res
}

// Dispatch runs, in declaration order and once each, the rules matched by paths.
// Errors are logged: a failing rule does not stop the others.
func (l *Loop) Dispatch(ctx context.Context, paths ...string) {
	l.runRules(ctx, l.matchAll(paths))
}

func (l *Loop) matchAll(paths []string) map[string]struct{} {
	names := map[string]struct{}{}

	for _, p := range paths {
		for _, rule := range l.Match(p) {
			names[rule.Name] = struct{}{}
		}
	}

	return names
}

func (l *Loop) runRules(ctx context.Context, names map[string]struct{}) {
	for _, rule := range l.rules {
		if _, ok := names[rule.Name]; !ok {
			continue
		}

		if ctx.Err() != nil {
			return
		}

		start := time.Now()

		err := l.run(ctx, rule)
		if err != nil {
			l.logger.Error("watch rule failed", "rule", rule.Name, "error", err)

			continue
		}

		l.logger.Info("watch rule done", "rule", rule.Name, "elapsed", time.Since(start))
	}
}

// trigger queues the rules matched by paths for the worker.
func (l *Loop) trigger(paths []string) {
	names := l.matchAll(paths)
	if len(names) == 0 {
		return
	}

	l.mu.Lock()
	for name := range names {
		l.pending[name] = struct{}{}
	}
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *Loop) takePending() map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := l.pending
	l.pending = map[string]struct{}{}

	return pending
}

func (l *Loop) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.signal:
			l.runRules(ctx, l.takePending())
		}
	}
}

// Run watches until ctx is done. It only returns an error if the watches cannot be set up.
func (l *Loop) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "unable to create file watcher")
	}
	defer fsw.Close()

	dirs := 0

	for _, base := range l.bases() {
		n, _, err := l.watchTree(fsw, base)
		if err != nil {
			return err
		}

		dirs += n
	}

	l.logger.Info("watching", "dirs", dirs, "rules", len(l.rules))

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		l.work(ctx)
	}()

	defer wg.Wait()
	defer cancel()

	timer := time.NewTimer(l.debounce)
	timer.Stop()

	var (
		changed []string
		settled <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			paths := l.handle(fsw, ev)
			if len(paths) == 0 {
				continue
			}

			changed = append(changed, paths...)

			timer.Reset(l.debounce)
			settled = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			l.logger.Warn("file watcher error", "error", err)
		case <-settled:
			settled = nil

			l.trigger(changed)
			changed = nil
		}
	}
}

// handle returns the watched paths changed by ev. New directories are watched as well, and
// the files already in them are reported.
func (l *Loop) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) []string {
	if ev.Op == fsnotify.Chmod {
		return nil
	}

	rel, ok := l.rel(ev.Name)
	if !ok {
		return nil
	}

	var res []string

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_, files, err := l.watchTree(fsw, ev.Name)
			if err != nil {
				l.logger.Warn("unable to watch new directory", "path", rel, "error", err)
			}

			res = append(res, files...)
		}
	}

	if len(l.Match(rel)) > 0 {
		l.logger.Debug("file changed", "path", rel, "op", ev.Op.String())

		res = append(res, rel)
	}

	return res
}

// bases returns the existing directories to watch for the rules. A missing pattern base is
// replaced by its closest existing parent so its creation is noticed.
func (l *Loop) bases() []string {
	seen := map[string]struct{}{}

	var res []string

	for _, rule := range l.rules {
		for _, pattern := range rule.Patterns {
			base, _ := doublestar.SplitPattern(path.Clean(pattern))

			dir := filepath.Join(l.root, filepath.FromSlash(base))
			for dir != l.root && filepath.Dir(dir) != dir {
				if info, err := os.Stat(dir); err == nil && info.IsDir() {
					break
				}

				dir = filepath.Dir(dir)
			}

			if _, ok := seen[dir]; ok {
				continue
			}

			seen[dir] = struct{}{}
			res = append(res, dir)
		}
	}

	return res
}

// watchTree adds dir and its subdirectories to fsw. It returns how many directories were
// added and the files found under them that match a rule.
func (l *Loop) watchTree(fsw *fsnotify.Watcher, dir string) (int, []string, error) {
	var (
		dirs  int
		files []string
	)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !d.IsDir() {
			if rel, ok := l.rel(p); ok && len(l.Match(rel)) > 0 {
				files = append(files, rel)
			}

			return nil
		}

		err = fsw.Add(p)
		if err != nil {
			return errors.Wrapf(err, "unable to watch %s", p)
		}

		dirs++

		return nil
	})
	if err != nil {
		return dirs, files, errors.Wrapf(err, "unable to watch %s", dir)
	}

	return dirs, files, nil
}

// rel converts a watched file name to a slash separated path relative to the root.
func (l *Loop) rel(name string) (string, bool) {
	rel, err := filepath.Rel(l.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return filepath.ToSlash(rel), true
}
