// Package storetest holds the behaviour every store.DB implementation must show. Backend packages run it from their
// own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/store"
)

// Run exercises db, which must start empty.
func Run(t *testing.T, db store.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snaps, _, err := db.WatchCampaigns(ctx)
	require.NoError(t, err)

	first := <-snaps
	assert.Empty(t, first, "initial snapshot of an empty store")

	seeded, err := db.SeedCampaigns(ctx, []store.Campaign{{Title: "seed", Tag: "Other", Desc: "d", Goal: 10,
		Status: store.StatusActive, CreatedAt: 1}})
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = db.SeedCampaigns(ctx, []store.Campaign{{Title: "again", Goal: 10}})
	require.NoError(t, err)
	assert.False(t, seeded)

	id, err := db.CreateCampaign(ctx, store.Campaign{Title: "flood", Tag: "Flood Relief", Desc: "d", Goal: 1000,
		Status: store.StatusActive, CreatorAddress: "anonymous", CreatedAt: 2})
	require.NoError(t, err)

	c, err := db.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "flood", c.Title)
	assert.Equal(t, id, c.ID)

	_, err = db.GetCampaign(ctx, "not-an-id")
	assert.True(t, errors.Is(err, store.ErrCampaignNotFound))

	// the watcher sees the latest state eventually
	deadline := time.After(10 * time.Second)

	for seen := false; !seen; {
		select {
		case cs := <-snaps:
			seen = len(cs) == 2
		case <-deadline:
			t.Fatal("watcher did not report the new campaign")
		}
	}

	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			d := store.Donation{CampaignID: id, TxHash: fmt.Sprintf("0x%064x", i), Net: "test", Amount: "1",
				Converted: 1, Status: store.DonationPending}
			assert.NoError(t, db.RecordDonation(ctx, d, func(c *store.Campaign) error {
				c.Raised++

				return nil
			}))
		}(i)
	}
	wg.Wait()

	c, err = db.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, float64(workers), c.Raised, "no donation lost")

	dup := store.Donation{CampaignID: id, TxHash: fmt.Sprintf("0x%064x", 0), Net: "test", Amount: "1",
		Status: store.DonationPending}
	err = db.RecordDonation(ctx, dup, func(c *store.Campaign) error {
		c.Raised++

		return nil
	})
	assert.True(t, errors.Is(err, store.ErrDuplicateDonation))

	err = db.RecordDonation(ctx, store.Donation{CampaignID: "not-an-id"}, func(*store.Campaign) error { return nil })
	assert.True(t, errors.Is(err, store.ErrCampaignNotFound))

	pending, err := db.PendingDonations(ctx, "test")
	require.NoError(t, err)
	assert.Len(t, pending, workers)

	require.NoError(t, db.SetDonationStatus(ctx, pending[0].TxHash, store.DonationConfirmed))
	assert.True(t, errors.Is(db.SetDonationStatus(ctx, "0xunknown", store.DonationFailed), store.ErrDonationNotFound))

	pending, err = db.PendingDonations(ctx, "test")
	require.NoError(t, err)
	assert.Len(t, pending, workers-1)
}
