package mgo

import (
	"context"
	"sync"

	mgo "MuseShare/data/database/mgo/mongoutil"
	"MuseShare/data/database/utils/tx"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	mgoOnce sync.Once
	mgoMgr  *MongoManager
)

type MongoManager struct {
	client *mgo.Client
}

// Init connects and installs the singleton manager.
func Init(ctx context.Context, cfg *mgo.Config) error {
	var initErr error
	mgoOnce.Do(func() {
		cli, err := mgo.NewMongoDB(ctx, cfg)
		if err != nil {
			initErr = err
			return
		}
		mgoMgr = &MongoManager{client: cli}
	})
	return initErr
}

func GetDB() *mongo.Database {
	if mgoMgr == nil {
		panic("Mongo not initialized, call Init first")
	}
	return mgoMgr.client.GetDB()
}

func GetTx() tx.Tx {
	if mgoMgr == nil {
		panic("Mongo not initialized, call Init first")
	}
	return mgoMgr.client.GetTx()
}

func Close(ctx context.Context) error {
	if mgoMgr != nil && mgoMgr.client != nil {
		return mgoMgr.client.GetDB().Client().Disconnect(ctx)
	}
	return nil
}
