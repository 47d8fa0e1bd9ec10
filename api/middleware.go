package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

type CtxKey string

const (
	CtxKeyLimit  CtxKey = "limit"
	CtxKeyOffset CtxKey = "offset"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Paginate reads limit and offset from the query string. Missing, malformed
// or non positive values fall back to the defaults and limit is capped at
// MaxPageLimit.
func Paginate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", DefaultPageLimit)
		if limit > MaxPageLimit {
			limit = MaxPageLimit
		}
		offset := queryInt(r, "offset", 0)

		log.Debug().Int("limit", limit).Int("offset", offset).Send()
		ctx := context.WithValue(r.Context(), CtxKeyLimit, limit)
		ctx = context.WithValue(ctx, CtxKeyOffset, offset)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
