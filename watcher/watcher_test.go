package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/block"
	"github.com/tarancss/relief/lib/block/blocktest"
	"github.com/tarancss/relief/lib/block/types"
	"github.com/tarancss/relief/lib/msg/local"
	mtypes "github.com/tarancss/relief/lib/msg/types"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/store/memory"
	"github.com/tarancss/relief/watcher/pending"
)

const net = "sepolia"

func noop(*store.Campaign) error { return nil }

func status(t *testing.T, db *memory.Memory, hash string) string {
	t.Helper()

	for _, d := range db.Donations() {
		if d.TxHash == hash {
			return d.Status
		}
	}

	return ""
}

// TestWatch covers donations pending in the store when the watcher starts and donations submitted afterwards
// through the broker, confirmed and failed ones, and the events published for them.
func TestWatch(t *testing.T) {
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	mb := local.New()
	defer mb.Close()

	c := blocktest.New(net)

	id, err := db.CreateCampaign(ctx, store.Campaign{Title: "t", Goal: 10})
	require.NoError(t, err)

	for _, h := range []string{"0x01", "0x02"} {
		require.NoError(t, db.RecordDonation(ctx, store.Donation{TxHash: h, CampaignID: id, Net: net, Amount: "1",
			Status: store.DonationPending}, noop))
	}

	w := New(db, mb, map[string]block.Chain{net: c}, 5*time.Millisecond)
	done := w.Watch()

	// consume reconciled events
	var (
		mu  sync.Mutex
		evs = map[string]string{}
	)

	mut := new(sync.Mutex)
	mut.Lock()

	eveCh, _, err := mb.GetEvents(net, mut)
	require.NoError(t, err)

	go func() {
		for e := range eveCh {
			mu.Lock()
			evs[e.TxHash] = e.Status
			mu.Unlock()
			mut.Unlock()
		}
	}()

	// a donation submitted after the watcher started
	require.NoError(t, db.RecordDonation(ctx, store.Donation{TxHash: "0x03", CampaignID: id, Net: net, Amount: "2",
		Status: store.DonationPending}, noop))
	require.NoError(t, mb.SendDonation(net, mtypes.Donation{Net: net, TxHash: "0x03", CampaignID: id, Amount: "2"}))
	// ignored, wrong network
	require.NoError(t, mb.SendDonation(net, mtypes.Donation{Net: "mainnet", TxHash: "0x04"}))

	c.SetReceipt("0x01", types.TrxSuccess)
	c.SetReceipt("0x02", types.TrxFailed)
	c.SetReceipt("0x03", types.TrxSuccess)

	require.Eventually(t, func() bool {
		return status(t, db, "0x01") == store.DonationConfirmed && status(t, db, "0x02") == store.DonationFailed &&
			status(t, db, "0x03") == store.DonationConfirmed
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(evs) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, map[string]string{"0x01": store.DonationConfirmed, "0x02": store.DonationFailed,
		"0x03": store.DonationConfirmed}, evs)
	mu.Unlock()

	// the campaign total is not changed by reconciliation
	camp, _ := db.GetCampaign(ctx, id)
	assert.Zero(t, camp.Raised)

	pend, _ := db.PendingDonations(ctx, net)
	assert.Empty(t, pend)

	w.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// TestReconcileNodeDown keeps donations pending while receipts cannot be read.
func TestReconcileNodeDown(t *testing.T) {
	ctx := context.Background()

	db := memory.New()
	defer db.Close()

	c := blocktest.New(net)
	c.SetReceipt("0x01", types.TrxSuccess)
	c.Down(true)

	id, _ := db.CreateCampaign(ctx, store.Campaign{Title: "t", Goal: 10})
	require.NoError(t, db.RecordDonation(ctx, store.Donation{TxHash: "0x01", CampaignID: id, Net: net,
		Status: store.DonationPending}, noop))

	ds, _ := db.PendingDonations(ctx, net)
	w := New(db, local.New(), map[string]block.Chain{net: c}, time.Second)

	tr := newTracker(ds)
	assert.Empty(t, w.Reconcile(c, tr))
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, store.DonationPending, status(t, db, "0x01"))

	c.Down(false)

	evs := w.Reconcile(c, tr)
	require.Len(t, evs, 1)
	assert.Equal(t, store.DonationConfirmed, evs[0].Status)
	assert.Equal(t, id, evs[0].CampaignID)
	assert.Zero(t, tr.Len())
}

func newTracker(ds []store.Donation) *pending.Tracker {
	return pending.New(net, ds)
}
