package apicollectionv1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/temporaldb/service"
)

func insert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err == service.ErrorCollectionNotFound {
		col, err = s.CreateCollection(collectionName, false)
		if err != nil {
			return err // todo: handle/wrap this properly
		}
		err = col.SetDefaults(newCollectionDefaults())
		if err != nil {
			return err // todo: handle/wrap this properly
		}
	}
	if err != nil {
		return err // todo: handle/wrap this properly
	}

	executor := s.GetExecutor(collectionName)

	jsonReader := json.NewDecoder(r.Body)
	jsonWriter := json.NewEncoder(w)

	for i := 0; true; i++ {
		item := map[string]any{}
		err := jsonReader.Decode(&item)
		if err == io.EOF {
			if i == 0 {
				w.WriteHeader(http.StatusNoContent)
			}
			return nil
		}
		if err != nil {
			// TODO: handle error properly
			fmt.Println("ERROR:", err.Error())
			if i == 0 {
				w.WriteHeader(http.StatusBadRequest)
			}
			return err
		}

		var payload json.RawMessage
		if executor != nil {
			wrapped, err := executor.Insert(item)
			if err != nil {
				if i == 0 {
					w.WriteHeader(http.StatusConflict)
				}
				return err
			}
			payload, _ = json.Marshal(wrapped)
		} else {
			row, err := col.Insert(item)
			if err != nil {
				// TODO: handle error properly
				if i == 0 {
					w.WriteHeader(http.StatusConflict)
				}
				return err
			}
			payload = row.Payload
		}

		if i == 0 {
			w.WriteHeader(http.StatusCreated)
		}
		jsonWriter.Encode(payload)
	}

	return nil
}
