// Package store defines the interface for database implementations backing the campaign ledger.
package store

import (
	"context"
	"errors"
)

// DB defines the methods required by the ledger, the portal and the watcher.
type DB interface {
	// campaigns
	CreateCampaign(ctx context.Context, c Campaign) (string, error)
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	// SeedCampaigns inserts cs only when the store holds no campaign at all. It reports whether it inserted them.
	SeedCampaigns(ctx context.Context, cs []Campaign) (bool, error)
	// WatchCampaigns sends the full campaign collection once and again after every change, until ctx is done. Both
	// returned channels are closed when watching ends.
	WatchCampaigns(ctx context.Context) (<-chan []Campaign, <-chan error, error)

	// RecordDonation reads the campaign d is for, calls apply on it and writes back the result together with the
	// donation log entry, atomically. Concurrent calls for the same campaign never lose an update. It returns
	// ErrCampaignNotFound when the campaign does not exist and ErrDuplicateDonation when d.TxHash was already
	// recorded; nothing is written in either case.
	RecordDonation(ctx context.Context, d Donation, apply func(*Campaign) error) error
	SetDonationStatus(ctx context.Context, txHash, status string) error
	PendingDonations(ctx context.Context, net string) ([]Donation, error)
}

// Errors returned
var (
	ErrCampaignNotFound  = errors.New("campaign was not found in store")
	ErrDonationNotFound  = errors.New("donation was not found in store")
	ErrDuplicateDonation = errors.New("donation transaction already recorded")
)
