package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knmorgan/nova/sim"
)

const (
	journalBuffer    = 1024
	journalBatchSize = 50
)

// JournalFlushEvery bounds how long a tracked event waits before it is written.
var JournalFlushEvery = 2 * time.Second

// JournalEvent is one core event tagged with the run it belongs to
type JournalEvent struct {
	RunID  int64
	Tick   uint64
	Kind   sim.EventKind
	Entity sim.Kind
	Points int
}

// Journal persists run events with batched background writes. Track never
// blocks, so sessions can call it from the tick loop.
type Journal struct {
	db     *DB
	events chan JournalEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	log    *logrus.Entry

	mu      sync.Mutex
	dropped int
}

// NewJournal creates and starts the background writer
func NewJournal(db *DB, log *logrus.Entry) *Journal {
	j := &Journal{
		db:     db,
		events: make(chan JournalEvent, journalBuffer),
		stop:   make(chan struct{}),
		log:    log,
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Track enqueues an event for async persistence (non-blocking)
func (j *Journal) Track(runID int64, ev sim.Event) {
	select {
	case j.events <- JournalEvent{
		RunID:  runID,
		Tick:   ev.Tick,
		Kind:   ev.Kind,
		Entity: ev.Entity,
		Points: ev.Points,
	}:
	default:
		// Channel full, drop rather than stall the tick loop
		j.mu.Lock()
		j.dropped++
		j.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the queue was full
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Stop drains pending events and waits for the writer to exit
func (j *Journal) Stop() {
	close(j.stop)
	j.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]JournalEvent, 0, 64)
	ticker := time.NewTicker(JournalFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= journalBatchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			for {
				select {
				case evt := <-j.events:
					batch = append(batch, evt)
				default:
					j.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the database
func (j *Journal) flush(events []JournalEvent) {
	if j.db == nil || len(events) == 0 {
		return
	}
	tx, err := j.db.conn.Begin()
	if err != nil {
		j.log.WithError(err).Error("journal: begin tx")
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO run_events (run_id, tick, kind, entity, points) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		j.log.WithError(err).Error("journal: prepare")
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		if _, err := stmt.Exec(evt.RunID, evt.Tick, evt.Kind.String(), evt.Entity.String(), evt.Points); err != nil {
			j.log.WithError(err).WithField("run", evt.RunID).Warn("journal: insert")
		}
	}
	if err := tx.Commit(); err != nil {
		j.log.WithError(err).Error("journal: commit")
		return
	}
	j.log.WithField("events", len(events)).Debug("journal flushed")
}
