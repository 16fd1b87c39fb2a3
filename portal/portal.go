// Package portal implements the donation portal microservice.
//
// This microservice implements a RESTful API for donors and campaign creators: it lists campaigns, creates them,
// connects wallets to the donation network and submits donations, crediting them to the campaign ledger as soon as
// the network accepted the transaction. A websocket feed pushes the campaign list every time it changes.
package portal

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/tarancss/relief/ledger"
	"github.com/tarancss/relief/lib/block"
	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/wallet"
)

// Keyring holds the accounts the portal donates from.
type Keyring interface {
	Accounts() ([]string, error)
	Signer(id uint32) (*wallet.KeySigner, error)
}

// Portal contains the data necessary to deliver the service.
type Portal struct {
	l      *ledger.Ledger
	bc     block.Chain
	wallet *wallet.Adapter
	keys   Keyring
	mb     msg.MsgBroker

	mu    sync.RWMutex
	camps []store.Campaign // latest presented list received from the ledger
	unsub func()

	s  *http.Server  // http server
	ss *http.Server  // https server
	sc chan struct{} // closed once the servers are shut down
}

// New returns a portal over the ledger l donating through bc. The portal campaign list follows the ledger from now
// on.
func New(l *ledger.Ledger, bc block.Chain, a *wallet.Adapter, keys Keyring, mb msg.MsgBroker) *Portal {
	p := &Portal{
		l:      l,
		bc:     bc,
		wallet: a,
		keys:   keys,
		mb:     mb,
		camps:  []store.Campaign{},
		sc:     make(chan struct{}),
	}
	p.unsub = l.Subscribe(p.setCampaigns)

	return p
}

func (p *Portal) setCampaigns(cs []store.Campaign) {
	p.mu.Lock()
	p.camps = cs
	p.mu.Unlock()
}

// Campaigns returns the campaign list as last received from the ledger.
func (p *Portal) Campaigns() []store.Campaign {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.camps
}

// Stop shuts down the http servers implementing the RESTful API and stops following the ledger. It can be called
// once.
func (p *Portal) Stop() {
	if p.s != nil {
		if err := p.s.Shutdown(context.Background()); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
	}

	if p.ss != nil {
		if err := p.ss.Shutdown(context.Background()); err != nil {
			logger.Error("https server shutdown", zap.Error(err))
		}
	}

	p.unsub()
	close(p.sc)
}

// ManageEvents starts a go routine consuming the donations reconciled by the watcher service.
func (p *Portal) ManageEvents() error {
	net := p.bc.Name()

	mut := new(sync.Mutex)
	mut.Lock()

	eveCh, errCh, err := p.mb.GetEvents(net, mut)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("start listening to reconciled donations", logger.Net(net))

		for eve := range eveCh {
			logger.Info("donation reconciled", logger.Net(net), zap.String("tx", eve.TxHash),
				zap.String("campaign", eve.CampaignID), zap.String("status", eve.Status))
			mut.Unlock()
		}

		logger.Info("stop listening to reconciled donations", logger.Net(net))
	}()

	go func() {
		for e := range errCh {
			logger.Warn("received error", logger.Net(net), zap.Error(e))
		}
	}()

	return nil
}
