package api

import (
	"context"
	"errors"

	"github.com/fulldump/box"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authenticate checks the X-Api-Key/X-Api-Secret headers against apiKey and
// apiSecret. An empty apiKey disables authentication entirely, so the
// database can still be run locally without credentials.
func Authenticate(apiKey, apiSecret string) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			if apiKey == "" {
				next(ctx)
				return
			}

			r := box.GetRequest(ctx)

			if r.Header.Get("X-Api-Key") != apiKey || r.Header.Get("X-Api-Secret") != apiSecret {
				box.SetError(ctx, ErrUnauthorized)
				return
			}

			next(ctx)
		}
	}
}
