package retrieval

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the hash rescan period of Watch.
const DefaultPollInterval = 5 * time.Second

// Watch rebuilds the index whenever the document directory changes, until
// ctx is done. Filesystem notifications trigger an immediate check; a hash
// rescan every interval catches what notifications miss.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var events <-chan fsnotify.Event
	var errs <-chan error
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warnf("fsnotify unavailable, polling only: %v", err)
	} else {
		defer func() { _ = w.Close() }()
		if err := w.Add(s.cfg.Dir); err != nil {
			s.log.Warnf("watch %s: %v", s.cfg.Dir, err)
		} else {
			events, errs = w.Events, w.Errors
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Infof("watching %s", s.cfg.Dir)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if s.wanted(ev.Name) {
				s.refresh()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log.Warnf("watcher: %v", err)
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Store) refresh() {
	changed, err := s.Changed()
	if err != nil {
		s.log.Warnf("scan %s: %v", s.cfg.Dir, err)
		return
	}
	if !changed {
		return
	}
	s.log.Infof("change detected in %s, re-indexing", s.cfg.Dir)
	if err := s.Rebuild(); err != nil {
		s.log.Errorf("rebuild index: %v", err)
	}
}
