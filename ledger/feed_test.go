package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/store"
)

// recorder collects the lists delivered to an observer.
type recorder struct {
	mu    sync.Mutex
	lists [][]store.Campaign
}

func (r *recorder) observe(cs []store.Campaign) {
	r.mu.Lock()
	r.lists = append(r.lists, cs)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.lists)
}

func (r *recorder) last() []store.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.lists) == 0 {
		return nil
	}

	return r.lists[len(r.lists)-1]
}

func titles(cs []store.Campaign) []string {
	ts := make([]string, 0, len(cs))
	for _, c := range cs {
		ts = append(ts, c.Title)
	}

	return ts
}

const wait, tick = 2 * time.Second, 5 * time.Millisecond

func TestSubscribe(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	var r recorder

	unsubscribe := l.Subscribe(r.observe)
	defer unsubscribe()

	// the current, empty, state is delivered first
	require.Eventually(t, func() bool { return r.count() >= 1 }, wait, tick)
	r.mu.Lock()
	assert.Empty(t, r.lists[0])
	r.mu.Unlock()

	now := testNow
	l.now = func() time.Time { return now }

	_, err := l.Create(ctx, CreateInput{Title: "Flood Relief", Tag: TagFlood, Desc: "d", Goal: 10})
	require.NoError(t, err)

	now = now.Add(time.Minute)
	id, err := l.Create(ctx, CreateInput{Title: "  flood relief ", Tag: TagFlood, Desc: "newer", Goal: 10})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cs := r.last()

		return len(cs) == 1 && cs[0].ID == id
	}, wait, tick)

	require.NoError(t, l.RecordDonation(ctx, id, eth("1")))
	require.Eventually(t, func() bool {
		cs := r.last()

		return len(cs) == 1 && cs[0].Percent == 100 && cs[0].Status == store.StatusCompleted
	}, wait, tick)
}

func TestSubscribeLate(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	var first recorder

	defer l.Subscribe(first.observe)()

	_, err := l.Seed(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(first.last()) == 3 }, wait, tick)

	// a later subscriber receives the current state right away
	var second recorder

	defer l.Subscribe(second.observe)()
	require.Eventually(t, func() bool { return len(second.last()) == 3 }, wait, tick)
	assert.Equal(t, titles(first.last()), titles(second.last()))
}

func TestUnsubscribe(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	var r recorder

	unsubscribe := l.Subscribe(r.observe)
	require.Eventually(t, func() bool { return r.count() >= 1 }, wait, tick)

	unsubscribe()
	unsubscribe()

	n := r.count()

	_, err := l.Create(ctx, CreateInput{Title: "t", Tag: TagFire, Desc: "d", Goal: 10})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, r.count())
}

func TestUnsubscribeOne(t *testing.T) {
	l, _ := newTestLedger(t)

	var a, b recorder

	unsubscribeA := l.Subscribe(a.observe)
	defer l.Subscribe(b.observe)()
	require.Eventually(t, func() bool { return a.count() >= 1 && b.count() >= 1 }, wait, tick)

	unsubscribeA()

	n := a.count()

	_, err := l.Create(context.Background(), CreateInput{Title: "t", Tag: TagFire, Desc: "d", Goal: 10})
	require.NoError(t, err)

	// the other observer keeps receiving changes
	require.Eventually(t, func() bool { return len(b.last()) == 1 }, wait, tick)
	assert.Equal(t, n, a.count())
}

func TestSubscribeAfterClose(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	var r recorder

	l.Subscribe(r.observe)
	require.Eventually(t, func() bool { return r.count() >= 1 }, wait, tick)

	l.Close()

	_, err := l.Create(ctx, CreateInput{Title: "one", Tag: TagFire, Desc: "d", Goal: 10})
	require.NoError(t, err)

	// the store is watched again and the change made while closed is seen
	var again recorder

	defer l.Subscribe(again.observe)()
	require.Eventually(t, func() bool { return len(again.last()) == 1 }, wait, tick)

	_, err = l.Create(ctx, CreateInput{Title: "two", Tag: TagFire, Desc: "d", Goal: 10})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(again.last()) == 2 }, wait, tick)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	l, _ := newTestLedger(t)

	var r recorder

	unsubscribe := l.Subscribe(r.observe)
	require.Eventually(t, func() bool { return r.count() >= 1 }, wait, tick)

	l.Close()
	unsubscribe()

	n := r.count()

	_, err := l.Create(context.Background(), CreateInput{Title: "t", Tag: TagFire, Desc: "d", Goal: 10})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, r.count())
}
