package api

import (
	"context"
	"net/http"

	"github.com/fulldump/box"
	"github.com/fulldump/box/boxopenapi"

	"github.com/fulldump/temporaldb/api/apicollectionv1"
	"github.com/fulldump/temporaldb/service"
	"github.com/fulldump/temporaldb/statics"
)

// Build assembles the v1 HTTP API. apiKey and apiSecret gate every request
// behind Authenticate; an empty apiKey disables authentication entirely.
// enableOpenapi additionally mounts /openapi.json, generated from the same
// box tree that serves the API.
func Build(s service.Servicer, staticsDir, version string, apiKey, apiSecret string, enableOpenapi bool) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1")
	v1.WithInterceptors(
		box.SetResponseHeader("Content-Type", "application/json"),
		Authenticate(apiKey, apiSecret),
	)

	apicollectionv1.BuildV1Collection(v1, s).
		WithInterceptors(
			injectServicer(s),
		)

	b.Resource("/v1/*").
		WithActions(box.AnyMethod(func(w http.ResponseWriter) interface{} {
			w.WriteHeader(http.StatusNotImplemented)
			return PrettyError{
				Message:     "not implemented",
				Description: "this endpoint does not exist, please check the documentation",
			}
		}))

	b.Resource("/release").
		WithActions(box.Get(func() string {
			return version
		}))

	if enableOpenapi {
		spec := boxopenapi.Spec(b)
		spec.Info.Title = "TemporalDB"
		spec.Info.Description = "A durable document database with built-in transaction-time versioning."
		b.Handle("GET", "/openapi.json", func(r *http.Request) any {
			spec.Servers = []boxopenapi.Server{
				{Url: "https://" + r.Host},
				{Url: "http://" + r.Host},
			}
			return spec
		})
	}

	// Mount statics
	b.Resource("/*").
		WithActions(
			box.Get(statics.ServeStatics(staticsDir)).WithName("serveStatics"),
		)

	return b
}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(apicollectionv1.SetServicer(ctx, s))
		}
	}
}
