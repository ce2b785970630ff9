// game/session/cache.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/store"
	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotResident is returned when an operation needs a cached record that isn't there.
	ErrNotResident = errors.New("session not resident")
	// ErrDegraded is returned when saving a record built by a failed load.
	ErrDegraded = errors.New("session degraded by failed load; refusing to overwrite stored data")
)

// Options tunes a Cache.
type Options struct {
	IOTimeout        time.Duration // per load/save call
	FlushParallelism int           // concurrent saves during sweeps and shutdown
	RegenRate        float64       // mana restored per RegenTick
}

// Cache owns the single authoritative Record per connected player.
//
// Every method must run on the scheduler's primary context. Loads and saves
// are delegated to workers and their results are applied back on the
// primary context, so the maps need no locking.
type Cache struct {
	sched sched.Scheduler
	store store.ProgressionStore
	opts  Options

	records map[uuid.UUID]*Record
	pending map[uuid.UUID][]func(*Record)
	saving  map[uuid.UUID]*saveChain
}

// saveChain serializes writes of one id. At most one snapshot per id is in
// flight; requests arriving meanwhile share a single follow-up save that
// snapshots when it starts.
type saveChain struct {
	waiters []func(error)
	next    []func(error)
	queued  bool
}

// NewCache creates an empty Cache.
func NewCache(s sched.Scheduler, st store.ProgressionStore, opts Options) *Cache {
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 10 * time.Second
	}
	if opts.FlushParallelism <= 0 {
		opts.FlushParallelism = 8
	}
	return &Cache{
		sched:   s,
		store:   st,
		opts:    opts,
		records: make(map[uuid.UUID]*Record),
		pending: make(map[uuid.UUID][]func(*Record)),
		saving:  make(map[uuid.UUID]*saveChain),
	}
}

// Get returns the resident record without touching storage.
func (c *Cache) Get(id uuid.UUID) (*Record, bool) {
	rec, ok := c.records[id]
	return rec, ok
}

// Snapshot returns a detached copy of the resident record's persisted state.
func (c *Cache) Snapshot(id uuid.UUID) (*models.Progression, bool) {
	rec, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return rec.Progression(), true
}

// LoadAsync delivers the player's record to done on the primary context.
// A resident record is delivered immediately. Otherwise exactly one backend
// load runs per id no matter how many callers are waiting; all of them
// receive the same record once it is published.
func (c *Cache) LoadAsync(id uuid.UUID, done func(*Record)) {
	if rec, ok := c.records[id]; ok {
		if done != nil {
			done(rec)
		}
		return
	}
	if waiters, inFlight := c.pending[id]; inFlight {
		c.pending[id] = append(waiters, done)
		return
	}
	c.pending[id] = []func(*Record){done}

	var (
		loaded *models.Progression
		err    error
	)
	c.sched.RunOnWorkerThenPrimary(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.IOTimeout)
		defer cancel()
		loaded, err = c.store.Load(ctx, id)
	}, func() {
		c.publish(id, loaded, err)
	})
}

func (c *Cache) publish(id uuid.UUID, loaded *models.Progression, err error) {
	waiters := c.pending[id]
	delete(c.pending, id)

	rec, resident := c.records[id]
	if !resident {
		switch {
		case err == nil:
			rec = recordFromProgression(id, loaded)
		case errors.Is(err, store.ErrNotFound):
			rec = NewRecord(id)
		default:
			// Fail open: let the player in on defaults, but never write them back.
			log.Printf("ERROR: SessionCache: load failed for %s, continuing with defaults: %v", id, err)
			rec = NewRecord(id)
			rec.Degraded = true
		}
		c.records[id] = rec
	}

	for _, w := range waiters {
		if w != nil {
			w(rec)
		}
	}
}

// Loading reports whether a load for id is in flight.
func (c *Cache) Loading(id uuid.UUID) bool {
	_, ok := c.pending[id]
	return ok
}

// SaveAsync writes the record on a worker. done receives the result on the
// primary context. The written snapshot includes every mutation made before
// the call, and saves of one id land in call order: while a save is in
// flight, later calls merge into one follow-up save. It returns
// ErrNotResident or ErrDegraded without scheduling anything.
func (c *Cache) SaveAsync(id uuid.UUID, done func(error)) error {
	rec, ok := c.records[id]
	if !ok {
		return fmt.Errorf("save %s: %w", id, ErrNotResident)
	}
	if rec.Degraded {
		return fmt.Errorf("save %s: %w", id, ErrDegraded)
	}
	if chain, busy := c.saving[id]; busy {
		chain.queued = true
		chain.next = append(chain.next, done)
		return nil
	}
	c.startSave(rec, []func(error){done})
	return nil
}

func (c *Cache) startSave(rec *Record, waiters []func(error)) {
	chain := &saveChain{waiters: waiters}
	c.saving[rec.ID] = chain
	snap := rec.Progression()
	written := snap.Clone()

	var err error
	c.sched.RunOnWorkerThenPrimary(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.IOTimeout)
		defer cancel()
		err = c.store.Save(ctx, snap)
	}, func() {
		if err != nil {
			log.Printf("ERROR: SessionCache: save failed for %s: %v", rec.ID, err)
		}
		c.finishSave(rec, chain, written, err)
	})
}

// finishSave records a completed write, starts the follow-up if one was
// requested, then reports to the waiters of the completed write.
func (c *Cache) finishSave(rec *Record, chain *saveChain, written *models.Progression, err error) {
	id := rec.ID
	cur, resident := c.records[id]
	if err == nil && resident && cur == rec {
		rec.Fresh = false
		rec.stored = written
	}
	if c.saving[id] == chain {
		delete(c.saving, id)
	}

	var nextErr error
	settled := chain.queued
	if chain.queued {
		switch {
		case !resident:
			nextErr = fmt.Errorf("save %s: %w", id, ErrNotResident)
		case cur.Degraded:
			nextErr = fmt.Errorf("save %s: %w", id, ErrDegraded)
		case !cur.Unsaved():
			// Nothing changed since the write that just landed.
		default:
			c.startSave(cur, chain.next)
			settled = false
		}
	}
	notify(chain.waiters, err)
	if settled {
		notify(chain.next, nextErr)
	}
}

func notify(waiters []func(error), err error) {
	for _, w := range waiters {
		if w != nil {
			w(err)
		}
	}
}

// Saving reports whether a write for id is in flight.
func (c *Cache) Saving(id uuid.UUID) bool {
	_, ok := c.saving[id]
	return ok
}

// Evict drops the record, but only once the store holds its current state:
// no write may be in flight and nothing may have changed since the last
// successful write. It reports whether the record was dropped.
func (c *Cache) Evict(id uuid.UUID) bool {
	rec, ok := c.records[id]
	if !ok || rec.Degraded || c.Saving(id) || rec.Unsaved() {
		return false
	}
	delete(c.records, id)
	return true
}

// Discard drops a degraded record. It refuses healthy records.
func (c *Cache) Discard(id uuid.UUID) bool {
	rec, ok := c.records[id]
	if !ok || !rec.Degraded {
		return false
	}
	delete(c.records, id)
	return true
}

// ApplyExperience awards experience and reports whether the player levelled up.
func (c *Cache) ApplyExperience(id uuid.UUID, amount float64) bool {
	rec, ok := c.records[id]
	if !ok {
		return false
	}
	return rec.AddExperience(amount) > 0
}

// SetRegenRate changes the mana restored per tick.
func (c *Cache) SetRegenRate(rate float64) { c.opts.RegenRate = rate }

// RegenTick restores mana for every resident player with a class for whom
// active reports true. A nil active covers everyone.
func (c *Cache) RegenTick(active func(uuid.UUID) bool) {
	for id, rec := range c.records {
		if active != nil && !active(id) {
			continue
		}
		rec.RegenMana(c.opts.RegenRate)
	}
}

// Resident lists the resident ids.
func (c *Cache) Resident() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of resident records.
func (c *Cache) Len() int { return len(c.records) }

// SweepResult reports the outcome of a full save sweep.
type SweepResult struct {
	Saved  []uuid.UUID
	Failed int
}

// SaveAllAsync writes a snapshot of every healthy resident record that has
// no write in flight. The writes run in parallel on one worker; done runs on
// the primary context. Saves requested for a swept id while the sweep runs
// follow it in order.
func (c *Cache) SaveAllAsync(done func(SweepResult)) {
	snaps, owners := c.snapshotAll(true)
	if len(snaps) == 0 {
		if done != nil {
			done(SweepResult{})
		}
		return
	}
	chains := make(map[uuid.UUID]*saveChain, len(owners))
	written := make(map[uuid.UUID]*models.Progression, len(snaps))
	for _, snap := range snaps {
		id := uuid.MustParse(snap.UUID)
		chains[id] = &saveChain{}
		c.saving[id] = chains[id]
		written[id] = snap.Clone()
	}

	var results map[uuid.UUID]error
	c.sched.RunOnWorkerThenPrimary(func() {
		results = c.flush(context.Background(), snaps)
	}, func() {
		var res SweepResult
		for id, err := range results {
			if err != nil {
				res.Failed++
			} else {
				res.Saved = append(res.Saved, id)
			}
			c.finishSave(owners[id], chains[id], written[id], err)
		}
		if done != nil {
			done(res)
		}
	})
}

// ShutdownSaveAll blocks until every resident record has been written or
// has failed. Saved records are evicted; failed ones stay resident. Each
// failure is logged and the flush carries on. It must run on the primary
// context or after the scheduler has stopped.
func (c *Cache) ShutdownSaveAll(ctx context.Context) error {
	snaps, _ := c.snapshotAll(false)
	log.Printf("INFO: SessionCache: flushing %d sessions before shutdown.", len(snaps))

	var errs []error
	saved := 0
	for id, err := range c.flush(ctx, snaps) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		delete(c.records, id)
		saved++
	}
	for id, rec := range c.records {
		if rec.Degraded {
			log.Printf("WARNING: SessionCache: skipped degraded session %s on shutdown.", id)
		}
	}
	log.Printf("INFO: SessionCache: shutdown flush saved %d, failed %d.", saved, len(errs))
	return errors.Join(errs...)
}

// snapshotAll snapshots every healthy record, leaving out records with a
// write in flight when skipBusy is set.
func (c *Cache) snapshotAll(skipBusy bool) ([]*models.Progression, map[uuid.UUID]*Record) {
	snaps := make([]*models.Progression, 0, len(c.records))
	owners := make(map[uuid.UUID]*Record, len(c.records))
	for id, rec := range c.records {
		if rec.Degraded || (skipBusy && c.Saving(id)) {
			continue
		}
		snaps = append(snaps, rec.Progression())
		owners[id] = rec
	}
	return snaps, owners
}

// flush saves snapshots with bounded parallelism and returns one result per
// id. It never stops early on a failed save; only ctx cancellation cuts it
// short.
func (c *Cache) flush(ctx context.Context, snaps []*models.Progression) map[uuid.UUID]error {
	var mu sync.Mutex
	results := make(map[uuid.UUID]error, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.FlushParallelism)
	for _, snap := range snaps {
		snap := snap
		id := uuid.MustParse(snap.UUID)
		g.Go(func() error {
			saveCtx, cancel := context.WithTimeout(gctx, c.opts.IOTimeout)
			defer cancel()
			err := c.store.Save(saveCtx, snap)
			if err != nil {
				log.Printf("ERROR: SessionCache: failed to save %s: %v", id, err)
				err = fmt.Errorf("save %s: %w", id, err)
			}
			mu.Lock()
			results[id] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
