package apicollectionv1

import (
	"context"
	"sort"
)

func listCollections(ctx context.Context) ([]*CollectionResponse, error) {

	s := GetServicer(ctx)

	collections := s.ListCollections()

	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*CollectionResponse, 0, len(names))
	for _, name := range names {
		col := collections[name]
		result = append(result, &CollectionResponse{
			Name:     name,
			Total:    col.Rows.Len(),
			Indexes:  len(col.Indexes),
			Defaults: col.Defaults,
		})
	}

	return result, nil
}
