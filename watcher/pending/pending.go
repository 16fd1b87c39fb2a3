// Package pending keeps the donations of a network whose transaction has not settled yet.
package pending

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/store"
)

// Status possible values, control whether a Tracker is working or has to stop.
const (
	WORK int = 0
	STOP int = 1
)

// Tracker holds the pending donations of a network keyed by transaction hash.
type Tracker struct {
	l      sync.Mutex // guards status and Map
	status int
	quit   chan struct{}
	Net    string
	Map    map[string]store.Donation
}

// New returns a working tracker for net holding ds. Donations without a transaction hash are ignored.
func New(net string, ds []store.Donation) *Tracker {
	t := &Tracker{Net: net, Map: make(map[string]store.Donation, len(ds)), quit: make(chan struct{})}

	for _, d := range ds {
		if d.TxHash != "" {
			t.Map[d.TxHash] = d
		}
	}

	logger.Info("tracking pending donations", logger.Net(net), zap.Int("pending", len(t.Map)))

	return t
}

// Add tracks d, replacing any donation with the same hash.
func (t *Tracker) Add(d store.Donation) {
	t.l.Lock()
	defer t.l.Unlock()

	t.Map[d.TxHash] = d
}

// Del stops tracking the donation with the given hash, returning it and an ok flag.
func (t *Tracker) Del(hash string) (d store.Donation, ok bool) {
	t.l.Lock()
	defer t.l.Unlock()

	d, ok = t.Map[hash]
	delete(t.Map, hash)

	return
}

// Len returns the number of donations tracked.
func (t *Tracker) Len() int {
	t.l.Lock()
	defer t.l.Unlock()

	return len(t.Map)
}

// Hashes returns the hashes tracked, oldest donation first.
func (t *Tracker) Hashes() []string {
	t.l.Lock()
	defer t.l.Unlock()

	hs := make([]string, 0, len(t.Map))
	for h := range t.Map {
		hs = append(hs, h)
	}

	sort.Slice(hs, func(i, j int) bool {
		a, b := t.Map[hs[i]], t.Map[hs[j]]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}

		return hs[i] < hs[j]
	})

	return hs
}

// Stop sets status to STOP.
func (t *Tracker) Stop() {
	t.l.Lock()
	if t.status != STOP {
		t.status = STOP
		close(t.quit)
	}
	t.l.Unlock()
}

// Status returns the current Tracker status.
func (t *Tracker) Status() int {
	t.l.Lock()
	defer t.l.Unlock()

	return t.status
}

// Stopped is closed once the tracker is stopped.
func (t *Tracker) Stopped() <-chan struct{} {
	return t.quit
}
