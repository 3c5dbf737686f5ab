// Package requesttime pins one "now" per HTTP request so every timestamp a
// request writes (first touch, payout creation, review) agrees.
package requesttime

import (
	"net/http"
	"time"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
