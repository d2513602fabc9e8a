package apicollectionv1

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/SierraSoftworks/connor"

	"github.com/fulldump/temporaldb/collection"
)

func traverseFullscan(input []byte, col *collection.Collection, f func(row *collection.Row) bool) error {

	params := &struct {
		Filter map[string]interface{}
		Skip   int64
		Limit  int64
	}{
		Filter: map[string]interface{}{},
		Skip:   0,
		Limit:  1,
	}
	err := json.Unmarshal(input, &params)
	if err != nil {
		return err
	}

	hasFilter := params.Filter != nil && len(params.Filter) > 0

	skip := params.Skip
	limit := params.Limit
	col.Rows.Traverse(func(row *collection.Row) bool {

		if limit == 0 {
			return false
		}

		if hasFilter {
			rowData := map[string]interface{}{}
			json.Unmarshal(row.Payload, &rowData) // todo: handle error here?

			match, matchErr := connor.Match(params.Filter, rowData)
			if matchErr != nil {
				err = fmt.Errorf("match: %w", matchErr)
				return false
			}
			if !match {
				return true
			}
		}

		if skip > 0 {
			skip--
			return true
		}

		limit--
		return f(row)
	})

	return err
}

func traverseUnique(input []byte, col *collection.Collection, f func(row *collection.Row) bool) error {

	params := &struct {
		Index string
		Value string
	}{}
	err := json.Unmarshal(input, &params)
	if err != nil {
		return err
	}

	index, exist := col.Indexes[params.Index]
	if !exist {
		return fmt.Errorf("index '%s' does not exist", params.Index)
	}

	traverseOptions, err := json.Marshal(collection.IndexMapTraverse{
		Value: params.Value,
	})
	if err != nil {
		return fmt.Errorf("marshal traverse options: %s", err.Error())
	}

	index.Traverse(traverseOptions, f)

	return nil
}

var traverseModes = map[string]func(input []byte, col *collection.Collection, f func(row *collection.Row) bool) error{
	"fullscan": traverseFullscan,
	"unique":   traverseUnique,
}

// traverse dispatches to the named traversal mode (defaulting to a
// fullscan), used by patch and remove the same way find uses findModes.
func traverse(input []byte, col *collection.Collection, f func(row *collection.Row) bool) error {

	mode := struct {
		Mode string
	}{
		Mode: "fullscan",
	}
	if err := json.Unmarshal(input, &mode); err != nil {
		return err
	}

	t, exists := traverseModes[mode.Mode]
	if !exists {
		return fmt.Errorf("bad mode '%s', must be [%s]", mode.Mode, strings.Join(GetKeys(traverseModes), "|"))
	}

	return t(input, col, f)
}

// TODO: move to package utils/diogenes
func GetKeys[T any](m map[string]T) []string {
	keys := []string{}
	for k, _ := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
