package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/iidc/logging"
	"go.viam.com/iidc/state"
)

// stateApplier is the part of a camera a watcher drives.
type stateApplier interface {
	State(ctx context.Context) (state.CameraState, error)
	SetState(ctx context.Context, next state.CameraState) error
}

// stateWatcher applies a camera state file every time it is written.
type stateWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  logging.Logger
}

// newStateWatcher starts watching the directory holding path, so that editors which
// replace the file rather than write it in place are seen too.
func newStateWatcher(path string, logger logging.Logger) (*stateWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "watching %q", filepath.Dir(abs)), watcher.Close())
	}
	return &stateWatcher{watcher: watcher, path: abs, logger: logger}, nil
}

func (w *stateWatcher) Close() error {
	return w.watcher.Close()
}

// apply reads the state file and sets it on cam. Unreadable files, including ones caught
// half written, are logged and skipped.
func (w *stateWatcher) apply(ctx context.Context, cam stateApplier, applied func(state.CameraState)) {
	next, err := readStateFile(w.path)
	if err != nil {
		w.logger.Warnw("skipping unreadable state file", "error", err)
		return
	}
	before, err := cam.State(ctx)
	if err != nil {
		w.logger.Warnw("could not read camera state", "error", err)
		return
	}
	if err := cam.SetState(ctx, next); err != nil {
		w.logger.Warnw("could not apply camera state", "path", w.path, "error", err)
		return
	}
	after, err := cam.State(ctx)
	if err != nil {
		w.logger.Warnw("could not read camera state", "error", err)
		return
	}
	w.logger.Infow("applied camera state", "path", w.path, "diff", state.Diff(before, after))
	if applied != nil {
		applied(after)
	}
}

// Run applies the file on every write or create until ctx is done.
func (w *stateWatcher) Run(ctx context.Context, cam stateApplier, applied func(state.CameraState)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.apply(ctx, cam, applied)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("file watcher error", "error", err)
		}
	}
}

// WatchAction applies a state file to a simulated camera, then again on every change,
// until interrupted.
func WatchAction(c *cli.Context) (err error) {
	path := c.Args().First()
	if path == "" {
		return errors.New("no state file given")
	}
	logger := loggerFrom(c)
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	sess, err := openSimSession(ctx, logger, simOptions{
		configDir: c.String(watchFlagConfigDir),
		migration: c.App.ErrWriter,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sess.Close(context.Background()))
	}()

	w, err := newStateWatcher(path, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, w.Close())
	}()

	applied := func(s state.CameraState) {
		infof(c.App.Writer, "applied %s: %dx%d %v at %.4g fps", path, s.Width, s.Height, s.Coding, s.FrameRate)
	}
	if _, statErr := os.Stat(w.path); statErr == nil {
		w.apply(ctx, sess.cam, applied)
	}
	infof(c.App.Writer, "watching %s, interrupt to stop", path)
	return w.Run(ctx, sess.cam, applied)
}
