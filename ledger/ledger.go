// Package ledger implements the campaign ledger: the set of fundraising campaigns, their creation, the crediting of
// donations converted to the display currency and a live, presented view of all campaigns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/monitor"
	"github.com/tarancss/relief/lib/price"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/util"
)

// Errors returned by the ledger.
var (
	ErrValidation       = errors.New("invalid campaign data")
	ErrStoreUnavailable = errors.New("campaign store unavailable")
)

// CreateInput holds the fields a campaign is created from. CreatorAddress may be empty.
type CreateInput struct {
	Title          string  `json:"title" validate:"required"`
	Tag            string  `json:"tag" validate:"required,campaigntag"`
	Desc           string  `json:"desc" validate:"required"`
	Goal           float64 `json:"goal" validate:"gt=0"`
	Img            string  `json:"img,omitempty"`
	CreatorAddress string  `json:"creatorAddress,omitempty"`
}

// Transfer is a donation to credit to a campaign. Amount is in native currency; TxHash, Net and Donor are empty for
// donations recorded without a transaction.
type Transfer struct {
	CampaignID string
	Amount     decimal.Decimal
	TxHash     string
	Net        string
	Donor      string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used to stamp new campaigns.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithWatchRetry sets how long the feed waits before watching the store again after it stopped.
func WithWatchRetry(d time.Duration) Option {
	return func(l *Ledger) { l.feed.retry = d }
}

// Ledger is safe for concurrent use.
type Ledger struct {
	db       store.DB
	rate     price.Source
	now      func() time.Time
	feed     *feed
	validate *validator.Validate
}

// New returns a ledger over db crediting donations at the rate given by rate.
func New(db store.DB, rate price.Source, opts ...Option) *Ledger {
	l := &Ledger{
		db:       db,
		rate:     rate,
		now:      time.Now,
		feed:     newFeed(db, 5*time.Second), //nolint:gomnd
		validate: newValidator(),
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0] //nolint:gomnd
	})
	_ = v.RegisterValidation("campaigntag", func(fl validator.FieldLevel) bool {
		return util.In(Tags, fl.Field().String())
	})

	return v
}

// validationError turns validator errors into a single ErrValidation.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	msgs := make([]string, 0, len(ves))

	for _, fe := range ves {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be a positive number")
		case "campaigntag":
			msgs = append(msgs, fe.Field()+" must be one of "+strings.Join(Tags, ", "))
		default:
			msgs = append(msgs, fe.Field()+" is not valid")
		}
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Subscribe registers fn to receive the presented campaign list: right away when the current state is known, and
// after every change of the store. Observers are called from their own goroutine, one call at a time; an observer
// slower than the changes only sees the latest list. The returned function stops deliveries, it may be called more
// than once.
func (l *Ledger) Subscribe(fn Observer) (unsubscribe func()) {
	return l.feed.subscribe(fn)
}

// Close ends all subscriptions and stops watching the store. A later Subscribe watches it again.
func (l *Ledger) Close() {
	l.feed.close()
}

// Create validates in and saves a new campaign with nothing raised yet. It returns the new campaign id.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (string, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Tag = strings.TrimSpace(in.Tag)
	in.Desc = strings.TrimSpace(in.Desc)

	if err := l.validate.Struct(in); err != nil {
		return "", validationError(err)
	}

	if math.IsInf(in.Goal, 0) {
		return "", fmt.Errorf("%w: goal must be a finite number", ErrValidation)
	}

	c := store.Campaign{
		Title:          in.Title,
		Tag:            in.Tag,
		Desc:           in.Desc,
		Goal:           in.Goal,
		Raised:         0,
		Percent:        0,
		Status:         store.StatusActive,
		Img:            in.Img,
		CreatorAddress: util.OrDefault(in.CreatorAddress, Anonymous),
		CreatedAt:      l.now().UnixMilli(),
	}

	id, err := l.db.CreateCampaign(ctx, c)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	monitor.CampaignsCreated.Inc()
	logger.Info("campaign created", zap.String("id", id), zap.String("title", c.Title),
		zap.String("creator", c.CreatorAddress))

	return id, nil
}

// RecordDonation credits amount, in native currency, to the campaign id. Unknown campaigns are ignored.
func (l *Ledger) RecordDonation(ctx context.Context, id string, amount decimal.Decimal) error {
	return l.RecordTransfer(ctx, Transfer{CampaignID: id, Amount: amount})
}

// RecordTransfer credits t to its campaign converted to the display currency, updating the campaign percentage and
// status in the same atomic step. Unknown campaigns and transfers whose transaction was already recorded are
// ignored.
func (l *Ledger) RecordTransfer(ctx context.Context, t Transfer) error {
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: donation amount cannot be negative", ErrValidation)
	}

	added, err := price.Convert(ctx, l.rate, t.Amount)
	if err != nil {
		monitor.DonationsRecorded.WithLabelValues(monitor.Failed).Inc()

		return fmt.Errorf("ledger: conversion rate: %w", err)
	}

	d := store.Donation{
		TxHash:     t.TxHash,
		CampaignID: t.CampaignID,
		Net:        t.Net,
		Donor:      t.Donor,
		Amount:     t.Amount.String(),
		Converted:  added.InexactFloat64(),
		Status:     store.DonationRecorded,
		CreatedAt:  l.now().UnixMilli(),
	}
	if t.TxHash != "" {
		d.Status = store.DonationPending
	}

	err = l.db.RecordDonation(ctx, d, func(c *store.Campaign) error {
		Apply(c, added)

		return nil
	})

	switch {
	case errors.Is(err, store.ErrCampaignNotFound):
		monitor.DonationsRecorded.WithLabelValues(monitor.Skipped).Inc()
		logger.Debug("donation to unknown campaign ignored", zap.String("id", t.CampaignID))

		return nil
	case errors.Is(err, store.ErrDuplicateDonation):
		monitor.DonationsRecorded.WithLabelValues(monitor.Duplicate).Inc()
		logger.Debug("donation already recorded", zap.String("tx", t.TxHash))

		return nil
	case err != nil:
		monitor.DonationsRecorded.WithLabelValues(monitor.Failed).Inc()
		logger.Error("cannot record donation", zap.String("id", t.CampaignID), zap.Error(err))

		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	monitor.DonationsRecorded.WithLabelValues(monitor.Recorded).Inc()
	monitor.DonationAmount.Add(added.InexactFloat64())
	logger.Info("donation recorded", zap.String("id", t.CampaignID), zap.String("amount", t.Amount.String()),
		zap.String("converted", added.String()), zap.String("tx", t.TxHash))

	return nil
}

// Seed saves the default campaigns when the store holds none. It reports whether it did.
func (l *Ledger) Seed(ctx context.Context) (bool, error) {
	seeded, err := l.db.SeedCampaigns(ctx, Defaults(l.now()))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if seeded {
		logger.Info("default campaigns seeded")
	}

	return seeded, nil
}

// Campaign returns the campaign with the given id.
func (l *Ledger) Campaign(ctx context.Context, id string) (store.Campaign, error) {
	c, err := l.db.GetCampaign(ctx, id)
	if err != nil && !errors.Is(err, store.ErrCampaignNotFound) {
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return c, err
}

// Campaigns returns the presented list of campaigns read directly from the store.
func (l *Ledger) Campaigns(ctx context.Context) ([]store.Campaign, error) {
	cs, err := l.db.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return Present(cs), nil
}
