package duckdb

import (
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/hookwatch/internal/model"
)

const defaultRetentionSweep = time.Hour

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	SweepInterval time.Duration // defaults to one hour
}

// RetentionCleaner periodically deletes events older than the retention period.
type RetentionCleaner struct {
	pruner    model.EventPruner
	retention time.Duration
	sweep     time.Duration
	now       func() time.Time
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewRetentionCleaner starts a cleaner that runs one sweep immediately and
// then every SweepInterval. Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(pruner model.EventPruner, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 || pruner == nil {
		return nil
	}
	sweep := conf.SweepInterval
	if sweep <= 0 {
		sweep = defaultRetentionSweep
	}

	rc := &RetentionCleaner{
		pruner:    pruner,
		retention: time.Duration(conf.RetentionDays) * 24 * time.Hour,
		sweep:     sweep,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	// Catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	cutoff := rc.now().Add(-rc.retention)

	rows, err := rc.pruner.DeleteBefore(cutoff)
	if err != nil {
		log.Printf("duckdb: retention cleanup error: %v", err)
		return
	}
	if rows > 0 {
		log.Printf("duckdb: retention cleanup deleted %d events older than %s", rows, cutoff.Format(time.RFC3339))
	}
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
