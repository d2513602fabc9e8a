package service

import (
	"errors"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/ttime"
)

var ErrorCollectionNotFound = errors.New("collection not found")
var ErrorCollectionAlreadyExists = errors.New("collection already exists")

type Servicer interface { // todo: review naming
	CreateCollection(name string, temporal bool) (*collection.Collection, error)
	GetCollection(name string) (*collection.Collection, error)
	ListCollections() map[string]*collection.Collection
	DeleteCollection(name string) error

	// GetExecutor returns the update executor for a temporal collection, or
	// nil if the collection is not temporal.
	GetExecutor(name string) *ttime.Executor
}
