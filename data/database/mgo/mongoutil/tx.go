package mongoutil

import (
	"context"
	"time"

	"MuseShare/data/database/utils/tx"
	"MuseShare/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// txTimeout bounds a transaction's lifetime; past it the session aborts and
// the caller gets a retryable error.
const txTimeout = 15 * time.Second

type mongoTx struct {
	client *mongo.Client
}

// NewMongoTx returns a Tx backed by mongo sessions. Requires a replica set
// (standalone mongod has no transaction support).
func NewMongoTx(ctx context.Context, client *mongo.Client) (tx.Tx, error) {
	if client == nil {
		return nil, errs.New("mongo client is nil")
	}
	return &mongoTx{client: client}, nil
}

func (t *mongoTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := t.client.StartSession()
	if err != nil {
		return errs.ErrStore.WrapMsg("start session", "err", err)
	}
	defer sess.EndSession(ctx)

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	}, opts)
	if err != nil {
		if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
			return errs.ErrStore.WrapMsg("transaction", "err", err)
		}
		return err
	}
	return nil
}
