package apicollectionv1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulldump/box"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/ttime"
)

// ttlRequest lets a caller page through rows whose expiring field (either a
// plain millisecond epoch or a ttime.Timestamp) is older than ttl, wiring
// ttime.TTLQuery's two-encoding reaper query into a plain find request
// instead of a dedicated reaper endpoint. It applies to fullscan finds; the
// unique mode looks a row up by index value and uses neither filter nor ttl.
type ttlRequest struct {
	Field      string `json:"field"`
	TtlMillis  int64  `json:"ttlMillis,omitempty"`
	TtlSeconds int64  `json:"ttlSeconds,omitempty"`
}

func find(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	rquestBody, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	input := struct {
		Mode   string
		Filter map[string]interface{}
		Ttl    *ttlRequest
	}{
		Mode: "fullscan",
	}
	err = json.Unmarshal(rquestBody, &input)
	if err != nil {
		return err
	}

	if input.Ttl != nil {
		now := ttime.NewMonotonicClock().Now()
		ttlQuery := ttime.TTLQuery(input.Ttl.Field, time.Now().UnixMilli(), input.Ttl.TtlMillis, now, input.Ttl.TtlSeconds)
		if len(input.Filter) == 0 {
			input.Filter = ttlQuery
		} else {
			input.Filter = map[string]interface{}{"$and": []any{input.Filter, ttlQuery}}
		}
	}

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err != nil {
		return err // todo: handle/wrap this properly
	}

	if input.Mode == "fullscan" {
		if executor := s.GetExecutor(collectionName); executor != nil {
			results, err := executor.Find(input.Filter)
			if err != nil {
				return fmt.Errorf("temporal find: %w", err)
			}
			encoder := json.NewEncoder(w)
			for _, doc := range results {
				encoder.Encode(doc)
			}
			return nil
		}
	}

	f, exist := findModes[input.Mode]
	if !exist {
		box.GetResponse(ctx).WriteHeader(http.StatusBadRequest)
		return fmt.Errorf("bad mode '%s', must be [%s]. See docs: TODO", input.Mode, strings.Join(GetKeys(findModes), "|"))
	}

	if input.Ttl != nil {
		// the find modes decode the raw body, so put the merged filter back in it
		params := map[string]interface{}{}
		json.Unmarshal(rquestBody, &params)
		for k := range params {
			if strings.EqualFold(k, "filter") {
				delete(params, k)
			}
		}
		params["filter"] = input.Filter
		if rquestBody, err = json.Marshal(params); err != nil {
			return err
		}
	}

	return f(rquestBody, col, w)
}

var findModes = map[string]func(input []byte, col *collection.Collection, w http.ResponseWriter) error{
	"fullscan": func(input []byte, col *collection.Collection, w http.ResponseWriter) error {
		return traverseFullscan(input, col, writeRow(w))
	},
	"unique": func(input []byte, col *collection.Collection, w http.ResponseWriter) error {
		return traverseUnique(input, col, writeRow(w))
	},
}

func writeRow(w http.ResponseWriter) func(r *collection.Row) bool {
	return func(row *collection.Row) bool {
		w.Write(row.Payload)
		w.Write([]byte("\n"))
		return true
	}
}
