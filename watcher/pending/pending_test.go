package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarancss/relief/lib/store"
)

func TestTracker(t *testing.T) {
	tr := New("net", []store.Donation{
		{TxHash: "0xb", CreatedAt: 2},
		{TxHash: "", CreatedAt: 1},
		{TxHash: "0xa", CreatedAt: 2},
	})

	assert.Equal(t, WORK, tr.Status())
	assert.Equal(t, 2, tr.Len())

	tr.Add(store.Donation{TxHash: "0xc", CreatedAt: 1})
	assert.Equal(t, []string{"0xc", "0xa", "0xb"}, tr.Hashes())

	_, ok := tr.Del("0xz")
	assert.False(t, ok)

	d, ok := tr.Del("0xa")
	assert.True(t, ok)
	assert.Equal(t, "0xa", d.TxHash)
	assert.Equal(t, []string{"0xc", "0xb"}, tr.Hashes())

	tr.Stop()
	tr.Stop()
	assert.Equal(t, STOP, tr.Status())

	select {
	case <-tr.Stopped():
	default:
		t.Error("stopped channel not closed")
	}
}
