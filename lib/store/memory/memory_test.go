package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/store/storetest"
)

func add(c *store.Campaign, v float64) error {
	c.Raised += v

	return nil
}

func TestCampaigns(t *testing.T) {
	ctx := context.Background()
	m := New()

	id1, err := m.CreateCampaign(ctx, store.Campaign{Title: "one", Goal: 10})
	require.NoError(t, err)
	id2, err := m.CreateCampaign(ctx, store.Campaign{Title: "two", Goal: 20})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	c, err := m.GetCampaign(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "two", c.Title)
	assert.Equal(t, id2, c.ID)

	_, err = m.GetCampaign(ctx, "nope")
	assert.True(t, errors.Is(err, store.ErrCampaignNotFound))

	cs, err := m.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "one", cs[0].Title)

	seeded, err := m.SeedCampaigns(ctx, []store.Campaign{{Title: "seed"}})
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestSeed(t *testing.T) {
	m := New()

	seeded, err := m.SeedCampaigns(context.Background(), []store.Campaign{{Title: "a"}, {Title: "b"}})
	require.NoError(t, err)
	assert.True(t, seeded)

	cs, _ := m.ListCampaigns(context.Background())
	assert.Len(t, cs, 2)
}

func TestRecordDonation(t *testing.T) {
	ctx := context.Background()
	m := New()
	id, _ := m.CreateCampaign(ctx, store.Campaign{Title: "one", Goal: 100})

	err := m.RecordDonation(ctx, store.Donation{CampaignID: "missing"}, func(c *store.Campaign) error { return add(c, 1) })
	assert.True(t, errors.Is(err, store.ErrCampaignNotFound))

	d := store.Donation{CampaignID: id, TxHash: "0xabc", Net: "sepolia", Status: store.DonationPending}
	require.NoError(t, m.RecordDonation(ctx, d, func(c *store.Campaign) error { return add(c, 5) }))

	err = m.RecordDonation(ctx, d, func(c *store.Campaign) error { return add(c, 5) })
	assert.True(t, errors.Is(err, store.ErrDuplicateDonation))

	// an apply error writes nothing
	boom := errors.New("boom")
	err = m.RecordDonation(ctx, store.Donation{CampaignID: id}, func(c *store.Campaign) error {
		c.Raised = 1e9

		return boom
	})
	assert.True(t, errors.Is(err, boom))

	c, _ := m.GetCampaign(ctx, id)
	assert.Equal(t, 5.0, c.Raised)
	assert.Len(t, m.Donations(), 1)

	ds, _ := m.PendingDonations(ctx, "sepolia")
	require.Len(t, ds, 1)
	require.NoError(t, m.SetDonationStatus(ctx, "0xabc", store.DonationConfirmed))

	ds, _ = m.PendingDonations(ctx, "sepolia")
	assert.Empty(t, ds)
	assert.True(t, errors.Is(m.SetDonationStatus(ctx, "0xdef", store.DonationFailed), store.ErrDonationNotFound))
}

func TestConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	m := New()
	id, _ := m.CreateCampaign(ctx, store.Campaign{Title: "one", Goal: 100})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = m.RecordDonation(ctx, store.Donation{CampaignID: id}, func(c *store.Campaign) error { return add(c, 1) })
		}()
	}
	wg.Wait()

	c, _ := m.GetCampaign(ctx, id)
	assert.Equal(t, 100.0, c.Raised)
}

func TestWatch(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, errs, err := m.WatchCampaigns(ctx)
	require.NoError(t, err)

	select {
	case cs := <-ch:
		assert.Empty(t, cs)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	_, _ = m.CreateCampaign(ctx, store.Campaign{Title: "one"})
	_, _ = m.CreateCampaign(ctx, store.Campaign{Title: "two"})

	// snapshots not read yet are replaced by the latest
	select {
	case cs := <-ch:
		assert.Len(t, cs, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after change")
	}

	cancel()

	_, open := <-errs
	assert.False(t, open)

	_, open = <-ch
	assert.False(t, open)
}

func TestBehaviour(t *testing.T) {
	m := New()
	defer m.Close()

	storetest.Run(t, m)
}
