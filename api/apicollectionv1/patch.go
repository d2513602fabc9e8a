package apicollectionv1

import (
	"context"
	"encoding/json"
	jsonv2 "encoding/json/v2"
	"io"
	"net/http"

	"github.com/SierraSoftworks/connor"
	"github.com/fulldump/box"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/ttime"
)

func patch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err != nil {
		return err // todo: handle/wrap this properly
	}

	requestBody, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	input := struct {
		Filter map[string]interface{} `json:"filter"`
		Patch  map[string]interface{} `json:"patch"`
		Upsert bool                   `json:"upsert"`
		Multi  bool                   `json:"multi"`
	}{}
	jsonv2.Unmarshal(requestBody, &input) // TODO: handle err

	if executor := s.GetExecutor(collectionName); executor != nil {
		filter := input.Filter
		if filter == nil {
			filter = map[string]interface{}{}
		}
		n, err := executor.Patch(filter, input.Patch, ttime.PatchOptions{
			Upsert: input.Upsert,
			Multi:  input.Multi,
		})
		if err != nil {
			return err
		}
		return json.NewEncoder(w).Encode(map[string]any{"patched": n})
	}

	e := json.NewEncoder(w)

	traverse(requestBody, col, func(row *collection.Row) bool {

		row.PatchMutex.Lock()
		defer row.PatchMutex.Unlock()

		hasFilter := input.Filter != nil && len(input.Filter) > 0
		if hasFilter {

			rowData := map[string]interface{}{}
			jsonv2.Unmarshal(row.Payload, &rowData) // todo: handle error here?

			match, err := connor.Match(input.Filter, rowData)
			if err != nil {
				// todo: handle error?
				// return fmt.Errorf("match: %w", err)
				return false
			}
			if !match {
				return false
			}
		}

		err := col.Patch(row, input.Patch)
		if err != nil {
			// TODO: handle err??
			// return err
			return true // todo: OR return false?
		}

		e.Encode(row.Payload) // todo: handle err?

		return true
	})

	return nil
}
