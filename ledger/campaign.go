package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tarancss/relief/lib/store"
)

// Campaign tags.
const (
	TagFlood      = "Flood Relief"
	TagEarthquake = "Earthquake"
	TagCyclone    = "Cyclone"
	TagDrought    = "Drought"
	TagFire       = "Fire"
	TagPandemic   = "Pandemic"
	TagOther      = "Other"
)

// Tags lists the tags a campaign can be created with.
var Tags = []string{TagFlood, TagEarthquake, TagCyclone, TagDrought, TagFire, TagPandemic, TagOther} //nolint:gochecknoglobals,lll

// Anonymous is the creator recorded for campaigns created without a wallet address.
const Anonymous = "anonymous"

var hundred = decimal.NewFromInt(100) //nolint:gochecknoglobals,gomnd

// Percent returns how much of goal raised covers, as a whole percentage capped at 100.
func Percent(raised, goal decimal.Decimal) int {
	if !goal.IsPositive() {
		return 0
	}

	ratio := raised.Div(goal)
	if ratio.GreaterThan(decimal.NewFromInt(1)) {
		ratio = decimal.NewFromInt(1)
	}

	return int(ratio.Mul(hundred).Round(0).IntPart())
}

// Apply credits added, in display currency, to c and recomputes its percentage and status. A campaign reaching its
// goal is Completed, any other campaign is Active.
func Apply(c *store.Campaign, added decimal.Decimal) {
	raised := decimal.NewFromFloat(c.Raised).Add(added)

	c.Raised = raised.InexactFloat64()
	c.Percent = Percent(raised, decimal.NewFromFloat(c.Goal))

	if c.Percent >= 100 { //nolint:gomnd
		c.Status = store.StatusCompleted
	} else {
		c.Status = store.StatusActive
	}
}

// NormalizeTitle returns the form of title used to detect duplicate campaigns.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Present returns a new list with cs sorted newest first and, among campaigns sharing a normalized title, only the
// first one kept. cs is not modified.
func Present(cs []store.Campaign) []store.Campaign {
	sorted := append([]store.Campaign(nil), cs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt > sorted[j].CreatedAt })

	seen := make(map[string]struct{}, len(sorted))
	list := make([]store.Campaign, 0, len(sorted))

	for _, c := range sorted {
		t := NormalizeTitle(c.Title)
		if _, ok := seen[t]; ok {
			continue
		}

		seen[t] = struct{}{}
		list = append(list, c)
	}

	return list
}

// Defaults returns the campaigns a new ledger is seeded with, created the days before now.
func Defaults(now time.Time) []store.Campaign {
	day := 24 * time.Hour

	return []store.Campaign{
		{
			Title: "Assam Floods 2025",
			Tag:   TagFlood,
			Desc: "Providing emergency food, shelter, and medical aid to over 40,000 displaced families across " +
				"Assam's Brahmaputra valley zone.",
			Raised:         1840000,
			Goal:           3000000,
			Percent:        61,
			Status:         store.StatusActive,
			Img:            "flood",
			CreatorAddress: "fdrs-admin",
			CreatedAt:      now.Add(-3 * day).UnixMilli(),
		},
		{
			Title: "Uttarakhand Quake Response",
			Tag:   TagEarthquake,
			Desc: "Emergency rescue operations and structural relief for communities affected by the 6.1 magnitude " +
				"earthquake near Chamoli district.",
			Raised:         980000,
			Goal:           2000000,
			Percent:        49,
			Status:         store.StatusActive,
			Img:            "quake",
			CreatorAddress: "fdrs-admin",
			CreatedAt:      now.Add(-2 * day).UnixMilli(),
		},
		{
			Title: "Cyclone Reena – Odisha",
			Tag:   TagCyclone,
			Desc: "Rebuilding homes, restoring power infrastructure, and supplying clean drinking water to coastal " +
				"villages ravaged by the storm.",
			Raised:         2410000,
			Goal:           2500000,
			Percent:        96,
			Status:         store.StatusClosingSoon,
			Img:            "cyclone",
			CreatorAddress: "fdrs-admin",
			CreatedAt:      now.Add(-day).UnixMilli(),
		},
	}
}
