//go:build integration

package redis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/msg/types"
)

// TestRedis requires an available redis server at localhost:6379.
func TestRedis(t *testing.T) {
	r, err := New("redis://localhost:6379/0")
	require.NoError(t, err)

	defer r.Close()

	require.NoError(t, r.Setup("test"))
	r.client.Del(r.ctx, "ds:testnet", "dr:testnet")

	mut := new(sync.Mutex)
	mut.Lock()

	dons, _, err := r.GetDonations("testnet", mut)
	require.NoError(t, err)

	sent := types.Donation{Net: "testnet", TxHash: "0x1234", CampaignID: "c1", Amount: "0.1", Status: types.Submitted}
	require.NoError(t, r.SendDonation("testnet", sent))
	assert.Equal(t, sent, <-dons)
	mut.Unlock()

	mut2 := new(sync.Mutex)
	mut2.Lock()

	eves, _, err := r.GetEvents("testnet", mut2)
	require.NoError(t, err)

	sent.Status = types.Failed
	require.NoError(t, r.SendEvents("testnet", []types.Donation{sent}))
	assert.Equal(t, sent, <-eves)
	mut2.Unlock()
}
