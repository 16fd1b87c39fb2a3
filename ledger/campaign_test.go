package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tarancss/relief/lib/store"
)

func TestPercent(t *testing.T) {
	for i, tc := range []struct {
		raised, goal string
		want         int
	}{
		{"0", "100000", 0},
		{"65000", "100000", 65},
		{"96500", "100000", 97},
		{"99400", "100000", 99},
		{"100000", "100000", 100},
		{"105000", "100000", 100},
		{"10", "0", 0},
	} {
		got := Percent(decimal.RequireFromString(tc.raised), decimal.RequireFromString(tc.goal))
		assert.Equal(t, tc.want, got, "case %d", i)
	}
}

func TestApply(t *testing.T) {
	c := store.Campaign{Goal: 100000, Raised: 40000, Percent: 40, Status: store.StatusActive}

	Apply(&c, decimal.NewFromInt(25000))
	assert.Equal(t, 65000.0, c.Raised)
	assert.Equal(t, 65, c.Percent)
	assert.Equal(t, store.StatusActive, c.Status)

	Apply(&c, decimal.NewFromInt(40000))
	assert.Equal(t, 105000.0, c.Raised)
	assert.Equal(t, 100, c.Percent)
	assert.Equal(t, store.StatusCompleted, c.Status)

	// closing soon is not kept once a donation is credited
	c = store.Campaign{Goal: 2500000, Raised: 2410000, Percent: 96, Status: store.StatusClosingSoon}
	Apply(&c, decimal.NewFromInt(2500))
	assert.Equal(t, 97, c.Percent)
	assert.Equal(t, store.StatusActive, c.Status)

	// fractional amounts are summed exactly
	c = store.Campaign{Goal: 1000}
	for i := 0; i < 10; i++ {
		Apply(&c, decimal.RequireFromString("0.1"))
	}
	assert.Equal(t, 1.0, c.Raised)
}

func TestPresent(t *testing.T) {
	cs := []store.Campaign{
		{ID: "a", Title: "Flood Relief", CreatedAt: 1},
		{ID: "b", Title: "Quake", CreatedAt: 3},
		{ID: "c", Title: "  flood relief  ", CreatedAt: 2},
		{ID: "d", Title: "Fire", CreatedAt: 2},
	}

	got := Present(cs)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}

	assert.Equal(t, []string{"b", "c", "d"}, ids)
	assert.Equal(t, "a", cs[0].ID, "input must not be modified")
	assert.Empty(t, Present(nil))
	assert.NotNil(t, Present(nil))
}

func TestDefaults(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	cs := Defaults(now)

	if assert.Len(t, cs, 3) {
		assert.Equal(t, "Assam Floods 2025", cs[0].Title)
		assert.Equal(t, store.StatusClosingSoon, cs[2].Status)
		assert.Less(t, cs[0].CreatedAt, cs[1].CreatedAt)
		assert.Less(t, cs[1].CreatedAt, cs[2].CreatedAt)
		assert.Less(t, cs[2].CreatedAt, now.UnixMilli())

		for _, c := range cs {
			assert.Contains(t, Tags, c.Tag)
			assert.Equal(t, Percent(decimal.NewFromFloat(c.Raised), decimal.NewFromFloat(c.Goal)), c.Percent, c.Title)
		}
	}
}
