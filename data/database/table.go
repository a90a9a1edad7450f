package database

import "go.mongodb.org/mongo-driver/mongo"

// Table is implemented by every persisted document type.
type Table interface {
	GetTableName() string
	Collection() *mongo.Collection
}
