package service

import (
	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/database"
	"github.com/fulldump/temporaldb/ttime"
)

// Service adapts database.Database to the Servicer interface the HTTP layer
// depends on, translating the database's "already open" error into the
// sentinel the handlers switch on.
type Service struct {
	db *database.Database
}

func NewService(db *database.Database) *Service {
	return &Service{db: db}
}

func (s *Service) CreateCollection(name string, temporal bool) (*collection.Collection, error) {
	col, err := s.db.CreateCollection(name, temporal)
	if err != nil {
		if _, exists := s.db.Collections[name]; exists {
			return nil, ErrorCollectionAlreadyExists
		}
		return nil, err
	}
	return col, nil
}

func (s *Service) GetCollection(name string) (*collection.Collection, error) {
	col, exists := s.db.Collections[name]
	if !exists {
		return nil, ErrorCollectionNotFound
	}
	return col, nil
}

func (s *Service) ListCollections() map[string]*collection.Collection {
	return s.db.Collections
}

func (s *Service) DeleteCollection(name string) error {
	return s.db.DropCollection(name)
}

func (s *Service) GetExecutor(name string) *ttime.Executor {
	return s.db.GetExecutor(name)
}
