package store

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// StartSweeper launches the background retention loop: every interval it
// removes records older than retention, together with their token sidecars.
// The sweeper acts with administrative authority and performs no capability
// check. It stops when ctx is cancelled and never stops for any other
// reason; per-artifact failures are logged and the pass moves on.
func (s *FileStore) StartSweeper(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.sweepOnce(retention)
				if removed > 0 {
					s.log.Infof("sweeper removed %d expired record(s)", removed)
				}
			}
		}
	}()
}

// sweepOnce performs a single retention pass and reports how many records
// it removed. Record age is measured from the artifact's modification time,
// which is its creation time: envelopes are immutable once published.
func (s *FileStore) sweepOnce(retention time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Errorf("sweeper cannot read upload dir: %v", err)
		return 0
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= retention {
			continue
		}

		switch {
		case isTokenSidecar(name):
			// Sidecars normally go with their record below. An expired
			// orphan (record already gone) is removed on its own.
			record := name[:len(name)-len(tokenSuffix)]
			if s.exists(record) {
				continue
			}
			if err := removeQuiet(filepath.Join(s.dir, name)); err != nil {
				s.log.Warnf("sweeper: remove orphan sidecar %s: %v", name, err)
			}
		default:
			// Covers live records plus anything stale in the directory,
			// such as an abandoned temp artifact.
			if err := removeQuiet(filepath.Join(s.dir, name)); err != nil {
				s.log.Warnf("sweeper: remove %s: %v", name, err)
				continue
			}
			if err := s.tokens.Remove(name); err != nil {
				s.log.Warnf("sweeper: remove sidecar of %s: %v", name, err)
			}
			if validRecordName(name) {
				removed++
				s.log.Infof("sweeper expired %s", name)
			}
		}
	}
	return removed
}
