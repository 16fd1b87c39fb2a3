// Package types defines the messages exchanged through the message broker.
package types

// Donation states carried by broker messages.
const (
	Submitted = "submitted"
	Confirmed = "confirmed"
	Failed    = "failed"
)

// Donation is the message the portal publishes when it submits a donation transaction, and the watcher publishes
// once the transaction settled.
type Donation struct {
	Net        string `json:"net"`
	TxHash     string `json:"txHash"`
	CampaignID string `json:"campaignId"`
	From       string `json:"from"`
	Amount     string `json:"amount"` // native currency
	Status     string `json:"status"`
}
