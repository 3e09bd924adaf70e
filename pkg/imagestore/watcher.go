package imagestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher generates thumbnails for images that other tools drop into the
// upload directory. Events for a file are debounced until it has been quiet
// for Settle, so half-written files are not decoded.
type Watcher struct {
	store  *Store
	log    logrus.FieldLogger
	Tick   time.Duration
	Settle time.Duration
	// OnThumbnail, when set, is called after each generated thumbnail.
	OnThumbnail func(src, thumb string)

	ready chan struct{}
}

func NewWatcher(store *Store, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		store:  store,
		log:    log,
		Tick:   250 * time.Millisecond,
		Settle: 300 * time.Millisecond,
	}
}

// Run watches the base directory and its subdirectories until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.store.Ensure(); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	err = filepath.WalkDir(w.store.Base(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.log.WithField("dir", w.store.Base()).Info("watching for new images")
	if w.ready != nil {
		close(w.ready)
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
				if err := fw.Add(ev.Name); err != nil {
					w.log.WithError(err).WithField("dir", ev.Name).Warn("watch subdirectory")
				}
				continue
			}
			if IsSupported(filepath.Base(ev.Name)) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		case now := <-ticker.C:
			for name, t := range pending {
				if now.Sub(t) > w.Settle {
					delete(pending, name)
					w.process(name)
				}
			}
		}
	}
}

func (w *Watcher) process(src string) {
	if _, err := os.Stat(ThumbPath(src)); err == nil {
		return
	} else if !errors.Is(err, fs.ErrNotExist) {
		w.log.WithError(err).WithField("file", src).Warn("stat thumbnail")
		return
	}
	thumb, err := w.store.Thumbnail(src)
	if err != nil {
		w.log.WithError(err).WithField("file", src).Warn("thumbnail failed")
		return
	}
	w.log.WithField("file", src).Debug("thumbnail created")
	if w.OnThumbnail != nil {
		w.OnThumbnail(src, thumb)
	}
}
