package service

import (
	"net/http"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

type JSON = map[string]interface{}

// Acceptance exercises the HTTP surface end to end, against either a real
// listening server or an in-process handler (api.Build wired through
// apitest.NewWithHandler), covering both plain collections and the
// transaction-time versioning layer.
func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	a.Alternative("Create collection", func(a *biff.A) {
		resp := apiRequest("POST", "/collections").
			WithBodyJson(JSON{
				"name": "my-collection",
			}).Do()
		Save(resp, "Create collection", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		expectedBody := JSON{
			"name":     "my-collection",
			"total":    0,
			"indexes":  0,
			"defaults": nil,
		}
		biff.AssertEqualJson(resp.BodyJson(), expectedBody)

		a.Alternative("Retrieve collection", func(a *biff.A) {
			resp := apiRequest("GET", "/collections/my-collection").Do()
			Save(resp, "Retrieve collection", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), expectedBody)
		})

		a.Alternative("List collections", func(a *biff.A) {
			resp := apiRequest("GET", "/collections").Do()
			Save(resp, "List collections", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			expectedBody := []JSON{expectedBody}
			biff.AssertEqualJson(resp.BodyJson(), expectedBody)
		})

		a.Alternative("Create collection twice", func(a *biff.A) {
			resp := apiRequest("POST", "/collections").
				WithBodyJson(JSON{
					"name": "my-collection",
				}).Do()
			Save(resp, "Create collection - conflict", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusConflict)
		})

		a.Alternative("Drop collection", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:dropCollection").Do()
			Save(resp, "Drop collection", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			resp = apiRequest("GET", "/collections/my-collection").Do()
			biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
		})

		a.Alternative("Insert one", func(a *biff.A) {
			myDocument := JSON{
				"id":   "1",
				"name": "Alfonso",
			}
			resp := apiRequest("POST", "/collections/my-collection:insert").
				WithBodyJson(myDocument).Do()
			Save(resp, "Insert - one document", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			biff.AssertEqualJson(resp.BodyJson(), myDocument)

			a.Alternative("Find with fullscan", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:find").
					WithBodyJson(JSON{}).Do()
				Save(resp, "Find - fullscan", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), myDocument)
			})

			a.Alternative("Get document by id", func(a *biff.A) {
				resp := apiRequest("GET", "/collections/my-collection/documents/1").Do()
				Save(resp, "Get document", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("Patch by fullscan", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:patch").
					WithBodyJson(JSON{
						"filter": JSON{"id": "1"},
						"patch":  JSON{"name": "Pedro"},
					}).Do()
				Save(resp, "Patch - by fullscan", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)

				resp = apiRequest("POST", "/collections/my-collection:find").
					WithBodyJson(JSON{}).Do()
				biff.AssertEqualJson(resp.BodyJson(), JSON{"id": "1", "name": "Pedro"})
			})

			a.Alternative("Remove by fullscan", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:remove").
					WithBodyJson(JSON{
						"filter": JSON{"id": "1"},
					}).Do()
				Save(resp, "Remove - by fullscan", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)

				resp = apiRequest("POST", "/collections/my-collection:find").
					WithBodyJson(JSON{}).Do()
				biff.AssertEqual(resp.BodyString(), "")
			})
		})

		a.Alternative("Create index - map", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:createIndex").
				WithBodyJson(JSON{"name": "by-id", "type": "map", "field": "id", "sparse": true}).Do()
			Save(resp, "Create index - map", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)

			a.Alternative("Get index", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:getIndex").
					WithBodyJson(JSON{"name": "by-id"}).Do()
				Save(resp, "Retrieve index", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("List indexes", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:listIndexes").Do()
				Save(resp, "List indexes", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("Drop index", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:dropIndex").
					WithBodyJson(JSON{"name": "by-id"}).Do()
				Save(resp, "Drop index", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusNoContent)
			})

			a.Alternative("Insert conflicting document", func(a *biff.A) {
				myDocument := JSON{"id": "dup", "name": "Fulanez"}

				apiRequest("POST", "/collections/my-collection:insert").
					WithBodyJson(myDocument).Do()
				resp := apiRequest("POST", "/collections/my-collection:insert").
					WithBodyJson(myDocument).Do()
				Save(resp, "Insert - unique index conflict", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusConflict)
			})
		})
	})

	a.Alternative("Create temporal collection", func(a *biff.A) {
		resp := apiRequest("POST", "/collections").
			WithBodyJson(JSON{
				"name":     "accounts",
				"temporal": true,
			}).Do()
		Save(resp, "Create temporal collection", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)

		a.Alternative("Insert first version", func(a *biff.A) {
			account := JSON{
				"_id":     "acc-1",
				"balance": 100,
			}
			resp := apiRequest("POST", "/collections/accounts:insert").
				WithBodyJson(account).Do()
			Save(resp, "Insert - temporal document", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)

			a.Alternative("Reject duplicate insert", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/accounts:insert").
					WithBodyJson(account).Do()
				Save(resp, "Insert - duplicate current version", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusConflict)
			})

			a.Alternative("Find current version", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/accounts:find").
					WithBodyJson(JSON{}).Do()
				Save(resp, "Find - current temporal version", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("Get document returns current version", func(a *biff.A) {
				resp := apiRequest("GET", "/collections/accounts/documents/acc-1").Do()
				Save(resp, "Get document - temporal", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("Patch closes the predecessor and inserts a successor", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/accounts:patch").
					WithBodyJson(JSON{
						"filter": JSON{"_id._id": "acc-1"},
						"patch":  JSON{"balance": 150},
					}).Do()
				Save(resp, "Patch - temporal", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"patched": 1})

				a.Alternative("Current find sees only the successor", func(a *biff.A) {
					resp := apiRequest("POST", "/collections/accounts:find").
						WithBodyJson(JSON{}).Do()

					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqual(strings.Count(resp.BodyString(), "\n"), 1)
					biff.AssertEqual(resp.BodyJson().(JSON)["balance"], float64(150))
				})

				a.Alternative("Historical find with transaction.all sees both versions", func(a *biff.A) {
					resp := apiRequest("POST", "/collections/accounts:find").
						WithBodyJson(JSON{
							"filter": JSON{"transaction": JSON{"all": true}},
						}).Do()
					Save(resp, "Find - transaction.all", ``)

					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqual(strings.Count(resp.BodyString(), "\n"), 2)
				})
			})

			a.Alternative("Remove closes the current version without a successor", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/accounts:remove").
					WithBodyJson(JSON{
						"filter": JSON{"_id._id": "acc-1"},
					}).Do()
				Save(resp, "Remove - temporal", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"removed": 1})

				resp = apiRequest("GET", "/collections/accounts/documents/acc-1").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})

		a.Alternative("Create a btree index narrowed to the current version", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/accounts:createIndex").
				WithBodyJson(JSON{"name": "by-balance", "type": "btree", "fields": []string{"balance"}}).Do()
			Save(resp, "Create index - temporal btree", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		})
	})

	a.Alternative("Find on a collection that does not exist", func(a *biff.A) {
		resp := apiRequest("POST", "/collections/missing:find").
			WithBodyJson(JSON{}).Do()
		Save(resp, "Find - collection not found", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusInternalServerError) // todo: should be 404
	})

	a.Alternative("Insert on a collection that does not exist yet", func(a *biff.A) {
		myDocument := JSON{"id": "my-id"}
		resp := apiRequest("POST", "/collections/auto-created:insert").
			WithBodyJson(myDocument).Do()
		Save(resp, "Insert - auto creates collection", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)

		a.Alternative("Document is there afterwards", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/auto-created:find").
				WithBodyJson(JSON{}).Do()

			biff.AssertEqualJson(resp.BodyJson(), myDocument)
			biff.AssertEqual(resp.StatusCode, http.StatusOK)
		})
	})
}
