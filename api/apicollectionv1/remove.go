package apicollectionv1

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/temporaldb/collection"
)

func remove(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	requestBody, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	input := struct {
		Index  string
		Filter map[string]interface{}
	}{
		Index: "",
	}
	err = json.Unmarshal(requestBody, &input)
	if err != nil {
		return err
	}

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err != nil {
		return err // todo: handle/wrap this properly
	}

	if executor := s.GetExecutor(collectionName); executor != nil {
		filter := input.Filter
		if filter == nil {
			filter = map[string]interface{}{}
		}
		n, err := executor.Remove(filter)
		if err != nil {
			return err
		}
		return json.NewEncoder(w).Encode(map[string]any{"removed": n})
	}

	var result error

	traverse(requestBody, col, func(row *collection.Row) bool {
		err := col.Remove(row)
		if err != nil {
			result = err
			return false
		}

		w.Write(row.Payload)
		w.Write([]byte("\n"))
		return true
	})

	return result
}
