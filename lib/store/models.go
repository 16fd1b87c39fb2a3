package store

// Campaign statuses.
const (
	StatusActive      = "Active"
	StatusClosingSoon = "Closing Soon"
	StatusCompleted   = "Completed"
)

// Donation statuses.
const (
	DonationRecorded  = "recorded" // no transaction to follow
	DonationPending   = "pending"
	DonationConfirmed = "confirmed"
	DonationFailed    = "failed"
)

// Campaign is a fundraising campaign as saved to DB. Goal and Raised are in display currency; CreatedAt is in unix
// milliseconds, zero when unknown.
type Campaign struct {
	ID             string  `json:"id" bson:"-"`
	Title          string  `json:"title" bson:"title"`
	Tag            string  `json:"tag" bson:"tag"`
	Desc           string  `json:"desc" bson:"desc"`
	Goal           float64 `json:"goal" bson:"goal"`
	Raised         float64 `json:"raised" bson:"raised"`
	Percent        int     `json:"percent" bson:"percent"`
	Status         string  `json:"status" bson:"status"`
	Img            string  `json:"img,omitempty" bson:"img,omitempty"`
	CreatorAddress string  `json:"creatorAddress" bson:"creatorAddress"`
	CreatedAt      int64   `json:"createdAt" bson:"createdAt"`
}

// Donation is an entry of the donation log. TxHash is empty for donations recorded without a transaction; Amount is
// the native amount as a decimal string and Converted the display currency credited to the campaign.
type Donation struct {
	TxHash     string  `json:"txHash,omitempty" bson:"tx_hash,omitempty"`
	CampaignID string  `json:"campaignId" bson:"campaign_id"`
	Net        string  `json:"net,omitempty" bson:"net,omitempty"`
	Donor      string  `json:"donor,omitempty" bson:"donor,omitempty"`
	Amount     string  `json:"amount" bson:"amount"`
	Converted  float64 `json:"converted" bson:"converted"`
	Status     string  `json:"status" bson:"status"`
	CreatedAt  int64   `json:"createdAt" bson:"created_at"`
}
