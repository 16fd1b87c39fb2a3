// Package mongo implements the store interface for MongoDB. Donations are recorded in multi-document transactions
// and watchers are fed from a change stream, so the server must run as a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/store"
)

// Database and collection names.
const (
	Database  = "relief"
	Campaigns = "campaigns"
	Donations = "donations"
	meta      = "meta"
)

const dupKey = 11000

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c  *mgo.Client
	db *mgo.Database
}

// MongoCampaign implements a store campaign to MongoDB.
type MongoCampaign struct {
	ID             primitive.ObjectID `bson:"_id"`
	store.Campaign `bson:",inline"`
}

// ToStore converts a MongoCampaign to store.Campaign type.
func (a MongoCampaign) ToStore() store.Campaign {
	c := a.Campaign
	c.ID = a.ID.Hex()

	return c
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	if err = c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	m := &Mongo{c: c, db: c.Database(Database)}

	// collections must exist before they are written inside a transaction
	if _, err = m.db.Collection(Donations).Indexes().CreateOne(ctx, mgo.IndexModel{
		Keys: bson.D{{Key: "tx_hash", Value: 1}},
		Options: options.Index().SetUnique(true).
			SetPartialFilterExpression(bson.M{"tx_hash": bson.M{"$exists": true}}),
	}); err != nil {
		return nil, fmt.Errorf("error creating donations index: %w", err)
	}

	if _, err = m.db.Collection(Campaigns).Indexes().CreateOne(ctx, mgo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}); err != nil {
		return nil, fmt.Errorf("error creating campaigns index: %w", err)
	}

	return m, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

func isDup(err error) bool {
	var we mgo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == dupKey {
				return true
			}
		}
	}

	var ce mgo.CommandError

	return errors.As(err, &ce) && ce.Code == dupKey
}

// CreateCampaign implements store.DB.
func (m *Mongo) CreateCampaign(ctx context.Context, c store.Campaign) (string, error) {
	mc := MongoCampaign{ID: primitive.NewObjectID(), Campaign: c}

	if _, err := m.db.Collection(Campaigns).InsertOne(ctx, mc); err != nil {
		return "", fmt.Errorf("could not insert campaign in db: %w", err)
	}

	return mc.ID.Hex(), nil
}

// GetCampaign implements store.DB.
func (m *Mongo) GetCampaign(ctx context.Context, id string) (store.Campaign, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.Campaign{}, store.ErrCampaignNotFound
	}

	var mc MongoCampaign
	if err = m.db.Collection(Campaigns).FindOne(ctx, bson.M{"_id": oid}).Decode(&mc); err != nil {
		if errors.Is(err, mgo.ErrNoDocuments) {
			err = store.ErrCampaignNotFound
		}

		return store.Campaign{}, err
	}

	return mc.ToStore(), nil
}

// ListCampaigns implements store.DB. Campaigns are returned in insertion order.
func (m *Mongo) ListCampaigns(ctx context.Context) ([]store.Campaign, error) {
	cur, err := m.db.Collection(Campaigns).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing campaigns: %w", err)
	}
	defer cur.Close(ctx)

	cs := []store.Campaign{}

	for cur.Next(ctx) {
		var mc MongoCampaign
		if err = cur.Decode(&mc); err != nil {
			return nil, fmt.Errorf("error reading campaign: %w", err)
		}

		cs = append(cs, mc.ToStore())
	}

	return cs, cur.Err()
}

// SeedCampaigns implements store.DB. A marker document makes sure only one process seeds.
func (m *Mongo) SeedCampaigns(ctx context.Context, cs []store.Campaign) (bool, error) {
	col := m.db.Collection(Campaigns)

	n, err := col.CountDocuments(ctx, bson.D{})
	if err != nil || n > 0 {
		return false, err
	}

	if _, err = m.db.Collection(meta).InsertOne(ctx, bson.M{"_id": "seed", "ts": time.Now().UnixMilli()}); err != nil {
		if isDup(err) {
			return false, nil
		}

		return false, err
	}

	docs := make([]interface{}, 0, len(cs))
	for _, c := range cs {
		docs = append(docs, MongoCampaign{ID: primitive.NewObjectID(), Campaign: c})
	}

	if _, err = col.InsertMany(ctx, docs); err != nil {
		return false, fmt.Errorf("could not seed campaigns in db: %w", err)
	}

	return true, nil
}

// RecordDonation implements store.DB. The read, the donation insert and the campaign update run in one transaction;
// a concurrent update of the same campaign aborts it with a transient write conflict and the driver runs it again
// against the new state.
func (m *Mongo) RecordDonation(ctx context.Context, d store.Donation, apply func(*store.Campaign) error) error {
	oid, err := primitive.ObjectIDFromHex(d.CampaignID)
	if err != nil {
		return store.ErrCampaignNotFound
	}

	camps, dons := m.db.Collection(Campaigns), m.db.Collection(Donations)

	return m.c.UseSession(ctx, func(sc mgo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(tc mgo.SessionContext) (interface{}, error) {
			var mc MongoCampaign
			if err := camps.FindOne(tc, bson.M{"_id": oid}).Decode(&mc); err != nil {
				if errors.Is(err, mgo.ErrNoDocuments) {
					return nil, store.ErrCampaignNotFound
				}

				return nil, err
			}

			if _, err := dons.InsertOne(tc, d); err != nil {
				if isDup(err) {
					return nil, store.ErrDuplicateDonation
				}

				return nil, fmt.Errorf("could not insert donation in db: %w", err)
			}

			c := mc.ToStore()
			if err := apply(&c); err != nil {
				return nil, err
			}

			_, err := camps.UpdateOne(tc, bson.M{"_id": oid}, bson.M{"$set": bson.M{
				"raised":  c.Raised,
				"percent": c.Percent,
				"status":  c.Status,
			}})

			return nil, err
		})

		return err
	})
}

// SetDonationStatus implements store.DB.
func (m *Mongo) SetDonationStatus(ctx context.Context, txHash, status string) error {
	res, err := m.db.Collection(Donations).UpdateOne(ctx, bson.M{"tx_hash": txHash},
		bson.M{"$set": bson.M{"status": status}})
	if err == nil && res.MatchedCount == 0 {
		err = store.ErrDonationNotFound
	}

	return err
}

// PendingDonations implements store.DB.
func (m *Mongo) PendingDonations(ctx context.Context, net string) ([]store.Donation, error) {
	cur, err := m.db.Collection(Donations).Find(ctx, bson.M{
		"status":  store.DonationPending,
		"net":     net,
		"tx_hash": bson.M{"$exists": true},
	})
	if err != nil {
		return nil, err
	}

	ds := []store.Donation{}
	if err = cur.All(ctx, &ds); err != nil {
		return nil, err
	}

	return ds, nil
}

// WatchCampaigns implements store.DB. The change stream is opened before the first snapshot is read so no change
// falls in between.
func (m *Mongo) WatchCampaigns(ctx context.Context) (<-chan []store.Campaign, <-chan error, error) {
	cs, err := m.db.Collection(Campaigns).Watch(ctx, mgo.Pipeline{})
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: cannot watch campaigns: %w", err)
	}

	snaps := make(chan []store.Campaign)
	errs := make(chan error)

	go func() {
		defer func() {
			_ = cs.Close(context.Background())
			close(snaps)
			close(errs)
		}()

		send := func() bool {
			list, err := m.ListCampaigns(ctx)
			if err != nil {
				select {
				case errs <- err:
					return true
				case <-ctx.Done():
					return false
				}
			}

			select {
			case snaps <- list:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}

		for cs.Next(ctx) {
			if !send() {
				return
			}
		}

		if err := cs.Err(); err != nil && ctx.Err() == nil {
			logger.Error("mongo: campaign change stream ended", zap.Error(err))

			select {
			case errs <- err:
			case <-ctx.Done():
			}
		}
	}()

	return snaps, errs, nil
}
