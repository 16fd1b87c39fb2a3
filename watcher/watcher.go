// Package watcher implements the reconciliation microservice. The watcher follows the transactions of submitted
// donations until they settle and records their outcome in the donation log. Campaign totals are credited when a
// donation is submitted and are never changed here: a failed transaction is only reported.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/block"
	"github.com/tarancss/relief/lib/block/types"
	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/monitor"
	"github.com/tarancss/relief/lib/msg"
	mtypes "github.com/tarancss/relief/lib/msg/types"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/watcher/pending"
)

const receiptTimeout = 10 * time.Second

// Watcher implements a watcher service.
type Watcher struct {
	db       store.DB
	mb       msg.MsgBroker
	bc       map[string]block.Chain
	interval time.Duration

	l  sync.Mutex
	tr map[string]*pending.Tracker
}

// New instantiates a new watcher service. Pending receipts are polled every interval, or every average block time
// of the network when interval is zero.
func New(db store.DB, mb msg.MsgBroker, bc map[string]block.Chain, interval time.Duration) *Watcher {
	return &Watcher{
		db:       db,
		mb:       mb,
		bc:       bc,
		interval: interval,
		tr:       make(map[string]*pending.Tracker),
	}
}

// Watch starts a go routine for each network. Each one loads the donations still pending in the store, consumes the
// donations submitted by the portal and polls the receipts of their transactions. The returned channel receives a
// message once every network routine ended, see Stop.
func (w *Watcher) Watch() chan string {
	ret := make(chan string, 1)
	done := make(chan string, len(w.bc))
	started := 0

	for net, c := range w.bc {
		ds, err := w.db.PendingDonations(context.Background(), net)
		if err != nil {
			logger.Error("cannot load pending donations", logger.Net(net), zap.Error(err))

			continue
		}

		tr := pending.New(net, ds)

		w.l.Lock()
		w.tr[net] = tr
		w.l.Unlock()

		if err = w.ManageDonations(net, tr); err != nil {
			logger.Error("cannot consume submitted donations", logger.Net(net), zap.Error(err))
			tr.Stop()

			continue
		}

		w.WatchChain(c, tr, done)
		started++
	}

	go func() {
		for i := 1; i <= started; i++ {
			logger.Info("watch ended", zap.Int("n", i), zap.Int("of", started), zap.String("msg", <-done))
		}
		ret <- "Done!"
	}()

	return ret
}

// Stop sends termination signals to all network routines.
func (w *Watcher) Stop() {
	w.l.Lock()
	defer w.l.Unlock()

	for _, tr := range w.tr {
		tr.Stop()
	}
}

// WatchChain starts the routine polling the receipts of the donations tracked by tr. When the routine ends it
// writes to ret.
func (w *Watcher) WatchChain(c block.Chain, tr *pending.Tracker, ret chan<- string) {
	net := c.Name()

	every := w.interval
	if every <= 0 {
		every = time.Duration(c.AvgBlock()) * time.Second
	}

	logger.Info("watching donations", logger.Net(net), zap.Duration("every", every))

	go func() {
		defer func() { ret <- "[" + net + "] Done!" }()

		t := time.NewTicker(every)
		defer t.Stop()

		for tr.Status() == pending.WORK {
			select {
			case <-tr.Stopped():
				return
			case <-t.C:
			}

			if tr.Len() == 0 {
				continue
			}

			if evs := w.Reconcile(c, tr); len(evs) > 0 {
				if err := w.mb.SendEvents(net, evs); err != nil {
					logger.Error("cannot send reconciled donations", logger.Net(net), zap.Int("events", len(evs)),
						zap.Error(err))
				}
			}
		}
	}()
}

// Reconcile checks the receipt of every donation tracked and records the outcome of those settled. It returns the
// events to publish for them.
func (w *Watcher) Reconcile(c block.Chain, tr *pending.Tracker) []mtypes.Donation {
	net := c.Name()
	evs := []mtypes.Donation{}

	for _, h := range tr.Hashes() {
		ctx, cancel := context.WithTimeout(context.Background(), receiptTimeout)
		st, err := c.Receipt(ctx, h)
		cancel()

		if err != nil {
			logger.Warn("cannot get receipt", logger.Net(net), zap.String("tx", h), zap.Error(err))

			continue
		}

		var status string

		switch st {
		case types.TrxSuccess:
			status = store.DonationConfirmed
		case types.TrxFailed:
			status = store.DonationFailed
		default:
			continue
		}

		if err = w.db.SetDonationStatus(context.Background(), h, status); err != nil &&
			!errors.Is(err, store.ErrDonationNotFound) {
			logger.Error("cannot save donation status", logger.Net(net), zap.String("tx", h), zap.Error(err))

			continue
		}

		d, _ := tr.Del(h)
		monitor.Reconciled.WithLabelValues(net, status).Inc()

		if status == store.DonationFailed {
			logger.Warn("donation transaction failed, campaign total already credited", logger.Net(net),
				zap.String("tx", h), zap.String("campaign", d.CampaignID), zap.String("amount", d.Amount))
		} else {
			logger.Info("donation confirmed", logger.Net(net), zap.String("tx", h), zap.String("campaign", d.CampaignID))
		}

		ev := event(d)
		ev.Status = status
		evs = append(evs, ev)
	}

	return evs
}

func event(d store.Donation) mtypes.Donation {
	return mtypes.Donation{
		Net:        d.Net,
		TxHash:     d.TxHash,
		CampaignID: d.CampaignID,
		From:       d.Donor,
		Amount:     d.Amount,
	}
}

func donation(m mtypes.Donation) store.Donation {
	return store.Donation{
		TxHash:     m.TxHash,
		CampaignID: m.CampaignID,
		Net:        m.Net,
		Donor:      m.From,
		Amount:     m.Amount,
		Status:     store.DonationPending,
		CreatedAt:  time.Now().UnixMilli(),
	}
}

// ManageDonations starts a go routine to receive the donations submitted in net and track them.
func (w *Watcher) ManageDonations(net string, tr *pending.Tracker) error {
	mut := new(sync.Mutex)
	mut.Lock()

	dons, errs, err := w.mb.GetDonations(net, mut)
	if err != nil {
		return fmt.Errorf("watcher: cannot get donations: %w", err)
	}

	go func() {
		logger.Info("start listening to submitted donations", logger.Net(net))

		for dons != nil || errs != nil {
			select {
			case m, ok := <-dons:
				if !ok {
					dons = nil

					continue
				}

				if m.Net != net || m.TxHash == "" {
					logger.Warn("ignoring donation with wrong net or no transaction", logger.Net(net),
						zap.String("msgNet", m.Net), zap.String("tx", m.TxHash))
				} else {
					tr.Add(donation(m))
					logger.Debug("tracking donation", logger.Net(net), zap.String("tx", m.TxHash))
				}

				mut.Unlock()
			case e, ok := <-errs:
				if !ok {
					errs = nil

					continue
				}

				logger.Warn("received error", logger.Net(net), zap.Error(e))
			}
		}

		logger.Info("stop listening to submitted donations", logger.Net(net))
	}()

	return nil
}
