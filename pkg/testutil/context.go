package testutil

import (
	"net/http"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// WithAdmin marks the request as coming from an authenticated admin, as the
// admin middleware would.
func WithAdmin(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithAdminSubject(req.Context(), subject))
}
