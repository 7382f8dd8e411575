package watchdog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Factory struct {
	logger *zap.Logger
}

func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{logger: logger.Named("watchdog")}
}

type filterFun func(string) bool

// Watcher forwards file-creation events under its watched directories to
// notifyChan. The channel is owned by the watcher and closed when the
// context is done.
type Watcher struct {
	ctx        context.Context
	notifyChan chan<- string
	filter     filterFun
	logger     *zap.Logger

	fsWatcher *fsnotify.Watcher
}

// New starts a watcher bound to ctx. filter decides which created paths are
// forwarded; nil forwards everything.
func (f *Factory) New(ctx context.Context, notifyChan chan<- string, filter filterFun) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		ctx:        ctx,
		notifyChan: notifyChan,
		filter:     filter,
		logger:     f.logger,
		fsWatcher:  fsWatcher,
	}
	go w.watch()
	return w, nil
}

// AddDir adds a directory to the watch list. The directory must exist.
func (w *Watcher) AddDir(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absDir); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(absDir); err != nil {
		return err
	}
	w.logger.Debug("watching directory", zap.String("dir", absDir))
	return nil
}

func (w *Watcher) watch() {
	defer w.fsWatcher.Close()
	defer close(w.notifyChan)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if w.filter != nil && !w.filter(event.Name) {
				w.logger.Debug("file ignored by filter", zap.String("file", event.Name))
				continue
			}
			// Guarded send: a consumer that is gone must not wedge this
			// goroutine once the buffer fills.
			select {
			case w.notifyChan <- event.Name:
			case <-w.ctx.Done():
				return
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", zap.Error(err))
		}
	}
}
