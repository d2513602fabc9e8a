package database

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/oplog"
	"github.com/fulldump/temporaldb/ttime"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

type Config struct {
	Dir string
}

type Database struct {
	config      *Config
	status      string
	Collections map[string]*collection.Collection
	Executors   map[string]*ttime.Executor // one per temporal collection, keyed by name
	exit        chan struct{}
}

func NewDatabase(config *Config) *Database { // todo: return error?
	s := &Database{
		config:      config,
		status:      StatusOpening,
		Collections: map[string]*collection.Collection{},
		Executors:   map[string]*ttime.Executor{},
		exit:        make(chan struct{}),
	}

	return s
}

// openExecutor wires a freshly-opened temporal collection to an Executor
// backed by a file oplog kept alongside the collection's own data file.
func (db *Database) openExecutor(name string, col *collection.Collection) error {
	sink, err := oplog.NewFileSink(path.Join(db.config.Dir, name) + ".oplog")
	if err != nil {
		return fmt.Errorf("open oplog sink for '%s': %w", name, err)
	}
	db.Executors[name] = ttime.NewExecutor(name, col, ttime.NewMonotonicClock(), sink)
	return nil
}

// GetExecutor returns the update executor for a temporal collection, or nil
// if the collection is not temporal.
func (db *Database) GetExecutor(name string) *ttime.Executor {
	return db.Executors[name]
}

func (db *Database) GetStatus() string {
	return db.status
}

func (db *Database) CreateCollection(name string, temporal bool) (*collection.Collection, error) {

	col, exists := db.Collections[name]
	if exists {
		return nil, fmt.Errorf("collection '%s' already exists", name)
	}

	filename := path.Join(db.config.Dir, name)
	col, err := collection.OpenCollection(filename, temporal)
	if err != nil {
		return nil, err
	}

	db.Collections[name] = col

	if col.Temporal {
		if err := db.openExecutor(name, col); err != nil {
			return nil, err
		}
	}

	return col, nil
}

func (db *Database) DropCollection(name string) (error) { // TODO: rename drop?

	col, exists := db.Collections[name]
	if !exists {
		return fmt.Errorf("collection '%s' not found", name)
	}

	filename := path.Join(db.config.Dir, name)

	err := os.Remove(filename)
	if err != nil {
		return err // TODO: wrap?
	}

	delete(db.Collections, name) // TODO: protect section! not threadsafe

	if executor, ok := db.Executors[name]; ok {
		if closer, ok := executor.Sink().(interface{ Close() error }); ok {
			closer.Close()
		}
		delete(db.Executors, name)
	}

	return  col.Close()
}

func (db *Database) Load() error {

	fmt.Printf("Loading database %s...\n", db.config.Dir) // todo: move to logger
	dir := db.config.Dir
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(dir, func(filename string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := filename
		name = strings.TrimPrefix(name, dir)
		name = strings.TrimPrefix(name, "/")

		if strings.HasSuffix(name, ".oplog") {
			return nil
		}

		t0 := time.Now()
		col, err := collection.OpenCollection(filename, false) // Temporal is restored from the log itself
		if err != nil {
			fmt.Printf("ERROR: open collection '%s': %s\n", filename, err.Error()) // todo: move to logger
			return err
		}
		fmt.Println(name, col.Rows.Len(), time.Since(t0)) // todo: move to logger

		db.Collections[name] = col

		if col.Temporal {
			if err := db.openExecutor(name, col); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		db.status = StatusClosing
		return err
	}

	db.status = StatusOperating

	return nil

}

func (db *Database) Start() error {

	go db.Load()

	<-db.exit

	return nil
}

func (db *Database) Stop() error {

	defer close(db.exit)

	db.status = StatusClosing

	var lastErr error
	for name, col := range db.Collections {
		fmt.Printf("Closing '%s'...\n", name)
		err := col.Close()
		if err != nil {
			fmt.Printf("ERROR: close(%s): %s", name, err.Error())
			lastErr = err
		}
	}

	for name, executor := range db.Executors {
		if closer, ok := executor.Sink().(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				fmt.Printf("ERROR: close oplog(%s): %s", name, err.Error())
				lastErr = err
			}
		}
	}

	return lastErr
}
