package database

import "go.mongodb.org/mongo-driver/mongo"

type Table interface {
	GetTableName() string
}

// Provider hands out the current database handle. The mongo manager swaps the
// underlying client on reconnect, so stores ask for it per call.
type Provider interface {
	GetDB() *mongo.Database
}

func Coll(p Provider, t Table) *mongo.Collection {
	return p.GetDB().Collection(t.GetTableName())
}
