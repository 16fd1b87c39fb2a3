package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/monitor"
	"github.com/tarancss/relief/lib/store"
)

// Observer receives the presented campaign list, see Present.
type Observer func([]store.Campaign)

// feed watches the store once and fans snapshots out to every subscriber. Each subscriber has a mailbox holding only
// the latest snapshot not yet delivered, so a slow observer skips intermediate states but never misses the last one.
type feed struct {
	db    store.DB
	retry time.Duration

	mu      sync.Mutex
	subs    map[uint64]*subscriber
	next    uint64
	latest  []store.Campaign
	have    bool
	started bool
	gen     uint64 // current watch, snapshots from older ones are dropped
	cancel  context.CancelFunc
	done    chan struct{}
}

type subscriber struct {
	fn     Observer
	box    chan []store.Campaign
	quit   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func newFeed(db store.DB, retry time.Duration) *feed {
	return &feed{db: db, retry: retry, subs: make(map[uint64]*subscriber)}
}

// offer replaces the pending snapshot of s. Must be called with the feed lock held.
func (s *subscriber) offer(snap []store.Campaign) {
	select {
	case <-s.box:
	default:
	}

	select {
	case s.box <- snap:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.quit:
			return
		case snap := <-s.box:
			if s.closed.Load() {
				return
			}

			s.fn(Present(snap))
		}
	}
}

func (f *feed) subscribe(fn Observer) func() {
	s := &subscriber{fn: fn, box: make(chan []store.Campaign, 1), quit: make(chan struct{})}

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = s

	if f.have {
		s.offer(f.latest)
	}

	if !f.started {
		f.start()
	}
	f.mu.Unlock()

	go s.run()

	monitor.FeedSubscribers.Inc()

	return func() {
		s.once.Do(func() {
			s.closed.Store(true)
			close(s.quit)

			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()

			monitor.FeedSubscribers.Dec()
		})
	}
}

func (f *feed) publish(gen uint64, snap []store.Campaign) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		return
	}

	f.latest, f.have = snap, true

	for _, s := range f.subs {
		s.offer(snap)
	}
}

// start watches the store until the feed is closed, watching again after f.retry whenever the store stops. Must be
// called with the feed lock held.
func (f *feed) start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	f.gen++
	gen := f.gen
	f.started, f.cancel, f.done = true, cancel, done

	go func() {
		defer close(done)

		for {
			snaps, errs, err := f.db.WatchCampaigns(ctx)
			if err != nil {
				logger.Error("ledger: cannot watch campaigns", zap.Error(err))
			} else {
				f.consume(ctx, gen, snaps, errs)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(f.retry):
				logger.Info("ledger: watching campaigns again")
			}
		}
	}()
}

func (f *feed) consume(ctx context.Context, gen uint64, snaps <-chan []store.Campaign, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}

			f.publish(gen, snap)
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			logger.Warn("ledger: campaign watch error", zap.Error(err))
		}
	}
}

// close stops watching the store and ends every subscription. The feed is left as new: a later subscription watches
// the store again.
func (f *feed) close() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	subs := f.subs
	f.subs = make(map[uint64]*subscriber)
	f.gen++
	f.started, f.cancel, f.done = false, nil, nil
	f.latest, f.have = nil, false
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	for _, s := range subs {
		s.once.Do(func() {
			s.closed.Store(true)
			close(s.quit)
			monitor.FeedSubscribers.Dec()
		})
	}
}
