package local

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/types"
)

func TestLocal(t *testing.T) {
	b := New()
	require.NoError(t, b.Setup(nil))

	// messages sent before anybody consumes are kept
	require.NoError(t, b.SendDonation("net", types.Donation{TxHash: "0x1"}))
	require.NoError(t, b.SendDonation("net", types.Donation{TxHash: "0x2"}))
	require.NoError(t, b.SendDonation("other", types.Donation{TxHash: "0x3"}))

	mut := new(sync.Mutex)
	mut.Lock()

	dons, _, err := b.GetDonations("net", mut)
	require.NoError(t, err)

	assert.Equal(t, "0x1", (<-dons).TxHash)
	assert.Equal(t, 1, b.Queued(msg.Submitted, "net"))
	assert.Equal(t, 1, b.Queued(msg.Submitted, "other"))

	// the next message waits until the consumer unlocks
	select {
	case d := <-dons:
		t.Fatalf("got %s before unlocking", d.TxHash)
	case <-time.After(20 * time.Millisecond):
	}

	mut.Unlock()
	assert.Equal(t, "0x2", (<-dons).TxHash)
	mut.Unlock()

	// events are a separate topic
	mut2 := new(sync.Mutex)
	mut2.Lock()

	eves, _, err := b.GetEvents("net", mut2)
	require.NoError(t, err)
	require.NoError(t, b.SendEvents("net", []types.Donation{{TxHash: "0x1", Status: types.Confirmed}}))

	e := <-eves
	assert.Equal(t, types.Confirmed, e.Status)
	mut2.Unlock()

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-dons
	assert.False(t, ok)

	assert.True(t, errors.Is(b.SendDonation("net", types.Donation{}), msg.ErrClosed))

	_, _, err = b.GetEvents("net", mut2)
	assert.True(t, errors.Is(err, msg.ErrClosed))
}
