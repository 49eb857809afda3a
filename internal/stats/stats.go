// Package stats keeps process-lifetime request counters for the usage
// report. Counters are monotonic and safe for concurrent use.
package stats

import "sync/atomic"

type Stats struct {
	admitted         atomic.Uint64
	completed        atomic.Uint64
	cancelled        atomic.Uint64
	failed           atomic.Uint64
	rejectedBusy     atomic.Uint64
	rejectedCooldown atomic.Uint64
	dropped          atomic.Uint64
}

func New() *Stats { return &Stats{} }

func (s *Stats) Admitted()         { s.admitted.Add(1) }
func (s *Stats) Completed()        { s.completed.Add(1) }
func (s *Stats) Cancelled()        { s.cancelled.Add(1) }
func (s *Stats) Failed()           { s.failed.Add(1) }
func (s *Stats) RejectedBusy()     { s.rejectedBusy.Add(1) }
func (s *Stats) RejectedCooldown() { s.rejectedCooldown.Add(1) }
func (s *Stats) Dropped()          { s.dropped.Add(1) }

type Snapshot struct {
	Admitted         uint64
	Completed        uint64
	Cancelled        uint64
	Failed           uint64
	RejectedBusy     uint64
	RejectedCooldown uint64
	Dropped          uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Admitted:         s.admitted.Load(),
		Completed:        s.completed.Load(),
		Cancelled:        s.cancelled.Load(),
		Failed:           s.failed.Load(),
		RejectedBusy:     s.rejectedBusy.Load(),
		RejectedCooldown: s.rejectedCooldown.Load(),
		Dropped:          s.dropped.Load(),
	}
}
