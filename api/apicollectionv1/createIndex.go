package apicollectionv1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/service"
	"github.com/fulldump/temporaldb/ttime"
)

// createIndexRequest unifies the three concrete index option shapes
// (collection.IndexMapOptions, IndexBTreeOptions, IndexFTSOptions) behind
// one wire format selected by Type, since the HTTP layer only ever sees one
// request body shape for "create an index".
type createIndexRequest struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Field  string   `json:"field,omitempty"`
	Fields []string `json:"fields,omitempty"`
	Sparse bool     `json:"sparse,omitempty"`
	Unique bool     `json:"unique,omitempty"`
}

func createIndex(ctx context.Context, input *createIndexRequest) (*listIndexesItem, error) {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err == service.ErrorCollectionNotFound {
		col, err = s.CreateCollection(collectionName, false)
	}
	if err != nil {
		return nil, err // todo: handle/wrap this properly
	}

	options, err := buildIndexOptions(col, input)
	if err != nil {
		return nil, err
	}

	if err := col.Index(input.Name, options); err != nil {
		return nil, err
	}

	box.GetResponse(ctx).WriteHeader(http.StatusCreated)

	return &listIndexesItem{
		Name:    input.Name,
		Type:    input.Type,
		Options: options,
	}, nil
}

// buildIndexOptions converts the wire-level request into one of
// collection's concrete option types. A compound btree index on a temporal
// collection gets transaction_end prepended (or renamed in, or dropped per
// an explicit opt-out) via ttime.ModifyTransactionTimeIndex, so range scans
// by id naturally narrow to the current version first.
func buildIndexOptions(col *collection.Collection, input *createIndexRequest) (interface{}, error) {
	switch input.Type {
	case "map":
		return &collection.IndexMapOptions{
			Field:  input.Field,
			Sparse: input.Sparse,
		}, nil
	case "btree":
		fields := input.Fields
		if col.Temporal {
			fields = ttime.ModifyTransactionTimeIndex(fields)
		}
		return &collection.IndexBTreeOptions{
			Fields: fields,
			Sparse: input.Sparse,
			Unique: input.Unique,
		}, nil
	case "fts":
		return &collection.IndexFTSOptions{
			Field: input.Field,
		}, nil
	case "ttl":
		if !col.Temporal {
			return nil, fmt.Errorf("index type 'ttl' only applies to temporal collections")
		}
		return &collection.IndexBTreeOptions{
			Fields: []string{"transaction_end"},
			Sparse: true,
		}, nil
	default:
		return nil, fmt.Errorf("unexpected index type '%s', it should be [map|btree|fts|ttl]", input.Type)
	}
}
