// game/syncer/progression_syncer.go
package syncer

import (
	"log"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
)

// ProgressionSyncer periodically writes every resident session back to the
// progression store. Records of players who have gone offline are evicted
// once their snapshot is safely stored; failed saves stay resident and are
// retried on the next pass.
type ProgressionSyncer struct {
	sched    sched.Scheduler
	cache    *session.Cache
	dir      presence.Directory
	interval time.Duration

	running bool
	stop    func()
}

// NewProgressionSyncer creates a new ProgressionSyncer instance.
func NewProgressionSyncer(s sched.Scheduler, cache *session.Cache, dir presence.Directory, interval time.Duration) *ProgressionSyncer {
	log.Println("ProgressionSyncer: Initializing.")
	return &ProgressionSyncer{sched: s, cache: cache, dir: dir, interval: interval}
}

// Start schedules the sweep on the primary context.
func (ps *ProgressionSyncer) Start() {
	log.Printf("Progression Syncer starting with sync interval: %v", ps.interval)
	ps.stop = ps.sched.RunPeriodically(ps.interval, ps.performSync)
}

// Stop cancels future sweeps. A sweep already writing finishes on its own.
func (ps *ProgressionSyncer) Stop() {
	if ps.stop != nil {
		ps.stop()
		log.Println("Progression Syncer shutting down.")
	}
}

// performSync runs one sweep unless the previous one is still writing.
func (ps *ProgressionSyncer) performSync() {
	if ps.running {
		log.Println("WARNING: Syncer: previous sweep still running, skipping this tick.")
		return
	}
	ps.running = true
	ps.cache.SaveAllAsync(func(res session.SweepResult) {
		ps.running = false
		evicted := 0
		for _, id := range res.Saved {
			if !ps.dir.IsOnline(id) && ps.cache.Evict(id) {
				evicted++
			}
		}
		if len(res.Saved) > 0 || res.Failed > 0 {
			log.Printf("INFO: Syncer: saved %d sessions, %d failed, evicted %d offline.", len(res.Saved), res.Failed, evicted)
		}
	})
}
