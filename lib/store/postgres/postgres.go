// Package postgres implements the store interface for PostgreSQL. The schema is applied on connection from the
// embedded migrations; campaign changes are pushed to watchers with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver for postgres:// urls
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/store/postgres/migrations"
)

const channel = "campaigns"

// ErrDirty is returned when a previous migration failed half way.
var ErrDirty = errors.New("postgres: database is in dirty state")

// Postgres implements a connection to a PostgreSQL database.
type Postgres struct {
	db   *sql.DB
	conn string
}

// New returns a postgres client connection to the database at the url in 'connection' with the schema migrated.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("error connecting to postgres DB: %w", err)
	}

	if err = Migrate(connection); err != nil {
		db.Close()

		return nil, err
	}

	return &Postgres{db: db, conn: connection}, nil
}

// Migrate applies the embedded migrations up to migrations.Version.
func Migrate(connection string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("postgres: migrations source: %w", err)
	}
	defer src.Close()

	mg, err := migrate.NewWithSourceInstance("iofs", src, connection)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	defer mg.Close()

	_, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("postgres: migration version: %w", err)
	}

	if dirty {
		return ErrDirty
	}

	if err = mg.Migrate(migrations.Version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrate: %w", err)
	}

	return nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

const campaignCols = `id, title, tag, descr, goal, raised, percent, status, img, creator_address, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(s scanner) (c store.Campaign, err error) {
	err = s.Scan(&c.ID, &c.Title, &c.Tag, &c.Desc, &c.Goal, &c.Raised, &c.Percent, &c.Status, &c.Img,
		&c.CreatorAddress, &c.CreatedAt)

	return
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertCampaign(ctx context.Context, e execer, c store.Campaign) error {
	_, err := e.ExecContext(ctx, `INSERT INTO campaigns (`+campaignCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Title, c.Tag, c.Desc, c.Goal, c.Raised, c.Percent, c.Status, c.Img, c.CreatorAddress, c.CreatedAt)

	return err
}

// CreateCampaign implements store.DB.
func (p *Postgres) CreateCampaign(ctx context.Context, c store.Campaign) (string, error) {
	c.ID = uuid.NewString()

	if err := insertCampaign(ctx, p.db, c); err != nil {
		return "", fmt.Errorf("could not insert campaign in db: %w", err)
	}

	return c.ID, nil
}

// GetCampaign implements store.DB.
func (p *Postgres) GetCampaign(ctx context.Context, id string) (store.Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return store.Campaign{}, store.ErrCampaignNotFound
	}

	c, err := scanCampaign(p.db.QueryRowContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = store.ErrCampaignNotFound
	}

	return c, err
}

// ListCampaigns implements store.DB. Campaigns are returned in insertion order.
func (p *Postgres) ListCampaigns(ctx context.Context) ([]store.Campaign, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+campaignCols+` FROM campaigns ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("error listing campaigns: %w", err)
	}
	defer rows.Close()

	cs := []store.Campaign{}

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("error reading campaign: %w", err)
		}

		cs = append(cs, c)
	}

	return cs, rows.Err()
}

// SeedCampaigns implements store.DB. The table is locked against concurrent inserts while checking it is empty.
func (p *Postgres) SeedCampaigns(ctx context.Context, cs []store.Campaign) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err = tx.ExecContext(ctx, `LOCK TABLE campaigns IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return false, err
	}

	var n int
	if err = tx.QueryRowContext(ctx, `SELECT count(*) FROM campaigns`).Scan(&n); err != nil {
		return false, err
	}

	if n > 0 {
		return false, nil
	}

	for _, c := range cs {
		c.ID = uuid.NewString()
		if err = insertCampaign(ctx, tx, c); err != nil {
			return false, fmt.Errorf("could not seed campaign in db: %w", err)
		}
	}

	return true, tx.Commit()
}

// RecordDonation implements store.DB. The campaign row is locked for the duration of the transaction so concurrent
// donations to the same campaign are applied one after the other.
func (p *Postgres) RecordDonation(ctx context.Context, d store.Donation, apply func(*store.Campaign) error) error {
	if _, err := uuid.Parse(d.CampaignID); err != nil {
		return store.ErrCampaignNotFound
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	c, err := scanCampaign(tx.QueryRowContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE id = $1 FOR UPDATE`, d.CampaignID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrCampaignNotFound
	}

	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO donations
		(tx_hash, campaign_id, net, donor, amount, converted, status, created_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (tx_hash) DO NOTHING`,
		d.TxHash, d.CampaignID, d.Net, d.Donor, d.Amount, d.Converted, d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not insert donation in db: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrDuplicateDonation
	}

	if err = apply(&c); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE campaigns SET raised = $2, percent = $3, status = $4 WHERE id = $1`,
		c.ID, c.Raised, c.Percent, c.Status); err != nil {
		return fmt.Errorf("could not update campaign in db: %w", err)
	}

	return tx.Commit()
}

// SetDonationStatus implements store.DB.
func (p *Postgres) SetDonationStatus(ctx context.Context, txHash, status string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE donations SET status = $2 WHERE tx_hash = $1`, txHash, status)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrDonationNotFound
	}

	return nil
}

// PendingDonations implements store.DB.
func (p *Postgres) PendingDonations(ctx context.Context, net string) ([]store.Donation, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT tx_hash, campaign_id, net, donor, amount, converted, status,
		created_at FROM donations WHERE status = $1 AND net = $2 AND tx_hash IS NOT NULL ORDER BY id`,
		store.DonationPending, net)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := []store.Donation{}

	for rows.Next() {
		var d store.Donation
		if err = rows.Scan(&d.TxHash, &d.CampaignID, &d.Net, &d.Donor, &d.Amount, &d.Converted, &d.Status,
			&d.CreatedAt); err != nil {
			return nil, err
		}

		ds = append(ds, d)
	}

	return ds, rows.Err()
}

// WatchCampaigns implements store.DB. A dedicated listener connection receives the notifications sent by the
// campaigns trigger; each one, and each reconnection, results in a fresh snapshot.
func (p *Postgres) WatchCampaigns(ctx context.Context) (<-chan []store.Campaign, <-chan error, error) {
	l := pq.NewListener(p.conn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) { //nolint:gomnd
		if err != nil {
			logger.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})

	if err := l.Listen(channel); err != nil {
		l.Close()

		return nil, nil, fmt.Errorf("postgres: cannot listen to %s: %w", channel, err)
	}

	snaps := make(chan []store.Campaign)
	errs := make(chan error)

	go func() {
		defer func() {
			l.Close()
			close(snaps)
			close(errs)
		}()

		send := func() bool {
			cs, err := p.ListCampaigns(ctx)
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
					return false
				}

				return true
			}

			select {
			case snaps <- cs:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.Notify:
				// nil notifications signal a reconnection, changes may have been missed
				if !send() {
					return
				}
			case <-time.After(90 * time.Second): //nolint:gomnd // keep the listener connection checked
				go func() { _ = l.Ping() }()
			}
		}
	}()

	return snaps, errs, nil
}
