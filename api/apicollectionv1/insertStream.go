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

// how to try with curl:
// start the server: go run ./cmd/temporaldb
// curl -v -X POST -T. http://localhost:8080/v1/collections/prueba:insertStream
// type one document and press enter
func insertStream(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	collection, err := s.GetCollection(collectionName)
	if err == service.ErrorCollectionNotFound {
		collection, err = s.CreateCollection(collectionName, false)
	}
	if err != nil {
		return err // todo: handle/wrap this properly
	}

	executor := s.GetExecutor(collectionName)

	jsonWriter := json.NewEncoder(w)
	jsonReader := json.NewDecoder(r.Body)

	//w.WriteHeader(http.StatusCreated)

	for {
		item := map[string]interface{}{}
		err := jsonReader.Decode(&item)
		if err == io.EOF {
			// w.WriteHeader(http.StatusCreated)
			return nil
		}
		if err != nil {
			// TODO: handle error properly
			fmt.Println("ERROR:", err.Error())
			// w.WriteHeader(http.StatusBadRequest)
			return err
		}
		if executor != nil {
			item, err = executor.Insert(item)
		} else {
			_, err = collection.Insert(item)
		}
		if err != nil {
			// TODO: handle error properly
			// w.WriteHeader(http.StatusConflict)
			return err
		}

		jsonWriter.Encode(item)
	}

}
