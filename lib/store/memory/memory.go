// Package memory implements the store interface in process memory. It is used for tests, demos and single process
// deployments; data is lost on exit.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tarancss/relief/lib/store"
)

// Memory is a store.DB kept in maps guarded by a single mutex.
type Memory struct {
	l        sync.Mutex
	order    []string // campaign ids in insertion order
	camps    map[string]store.Campaign
	dons     []store.Donation
	hashes   map[string]int // tx hash to index in dons
	watchers map[int]chan []store.Campaign
	next     int
}

// New returns an empty in-memory store.
func New() *Memory {
	return &Memory{
		camps:    make(map[string]store.Campaign),
		hashes:   make(map[string]int),
		watchers: make(map[int]chan []store.Campaign),
	}
}

// Close releases the watchers. Must be called at termination time.
func (m *Memory) Close() error {
	m.l.Lock()
	defer m.l.Unlock()

	for id, ch := range m.watchers {
		close(ch)
		delete(m.watchers, id)
	}

	return nil
}

// CreateCampaign saves c under a new id.
func (m *Memory) CreateCampaign(_ context.Context, c store.Campaign) (string, error) {
	m.l.Lock()
	defer m.l.Unlock()

	c.ID = uuid.NewString()
	m.insert(c)
	m.broadcast()

	return c.ID, nil
}

func (m *Memory) insert(c store.Campaign) {
	m.order = append(m.order, c.ID)
	m.camps[c.ID] = c
}

// GetCampaign returns the campaign with the given id.
func (m *Memory) GetCampaign(_ context.Context, id string) (store.Campaign, error) {
	m.l.Lock()
	defer m.l.Unlock()

	c, ok := m.camps[id]
	if !ok {
		return store.Campaign{}, store.ErrCampaignNotFound
	}

	return c, nil
}

// ListCampaigns returns all campaigns in insertion order.
func (m *Memory) ListCampaigns(context.Context) ([]store.Campaign, error) {
	m.l.Lock()
	defer m.l.Unlock()

	return m.snapshot(), nil
}

func (m *Memory) snapshot() []store.Campaign {
	cs := make([]store.Campaign, 0, len(m.order))
	for _, id := range m.order {
		cs = append(cs, m.camps[id])
	}

	return cs
}

// broadcast hands the current snapshot to every watcher, replacing any snapshot not yet received. Must be called
// with the lock held.
func (m *Memory) broadcast() {
	if len(m.watchers) == 0 {
		return
	}

	snap := m.snapshot()

	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// SeedCampaigns inserts cs when there are no campaigns yet.
func (m *Memory) SeedCampaigns(_ context.Context, cs []store.Campaign) (bool, error) {
	m.l.Lock()
	defer m.l.Unlock()

	if len(m.order) > 0 {
		return false, nil
	}

	for _, c := range cs {
		c.ID = uuid.NewString()
		m.insert(c)
	}

	m.broadcast()

	return true, nil
}

// WatchCampaigns implements store.DB.
func (m *Memory) WatchCampaigns(ctx context.Context) (<-chan []store.Campaign, <-chan error, error) {
	ch := make(chan []store.Campaign, 1)
	errs := make(chan error)

	m.l.Lock()
	id := m.next
	m.next++
	m.watchers[id] = ch
	ch <- m.snapshot()
	m.l.Unlock()

	go func() {
		<-ctx.Done()

		m.l.Lock()
		if _, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
		m.l.Unlock()
		close(errs)
	}()

	return ch, errs, nil
}

// RecordDonation implements store.DB.
func (m *Memory) RecordDonation(_ context.Context, d store.Donation, apply func(*store.Campaign) error) error {
	m.l.Lock()
	defer m.l.Unlock()

	c, ok := m.camps[d.CampaignID]
	if !ok {
		return store.ErrCampaignNotFound
	}

	if d.TxHash != "" {
		if _, dup := m.hashes[d.TxHash]; dup {
			return store.ErrDuplicateDonation
		}
	}

	if err := apply(&c); err != nil {
		return err
	}

	m.camps[c.ID] = c

	if d.TxHash != "" {
		m.hashes[d.TxHash] = len(m.dons)
	}

	m.dons = append(m.dons, d)
	m.broadcast()

	return nil
}

// SetDonationStatus updates the status of the donation sent in transaction txHash.
func (m *Memory) SetDonationStatus(_ context.Context, txHash, status string) error {
	m.l.Lock()
	defer m.l.Unlock()

	i, ok := m.hashes[txHash]
	if !ok {
		return store.ErrDonationNotFound
	}

	m.dons[i].Status = status

	return nil
}

// PendingDonations returns the donations sent in net still waiting for their transaction to settle.
func (m *Memory) PendingDonations(_ context.Context, net string) ([]store.Donation, error) {
	m.l.Lock()
	defer m.l.Unlock()

	ds := []store.Donation{}

	for _, d := range m.dons {
		if d.TxHash != "" && d.Net == net && d.Status == store.DonationPending {
			ds = append(ds, d)
		}
	}

	return ds, nil
}

// Donations returns a copy of the donation log.
func (m *Memory) Donations() []store.Donation {
	m.l.Lock()
	defer m.l.Unlock()

	return append([]store.Donation(nil), m.dons...)
}
