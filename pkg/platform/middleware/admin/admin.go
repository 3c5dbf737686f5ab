// Package admin guards operator endpoints with an HS256 bearer token whose
// role claim must be "admin".
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

const RoleAdmin = "admin"

// Claims is the admin token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errNotAdmin = errors.New("token role is not admin")

// RequireAdmin rejects requests without a valid admin bearer token and puts
// the token subject into the request context as the reviewer identity.
func RequireAdmin(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject, err := verify(r.Header.Get("Authorization"), secret)
			if err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
					"error", err,
				)
				if errors.Is(err, errNotAdmin) {
					httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdminSubject(ctx, subject)))
		})
	}
}

func verify(header string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Role != RoleAdmin {
		return "", errNotAdmin
	}
	if claims.Subject == "" {
		return "", errors.New("token subject is empty")
	}
	return claims.Subject, nil
}

// SignToken issues an admin token. Used by operator tooling and tests.
func SignToken(secret []byte, subject string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: RoleAdmin, RegisteredClaims: claims}).SignedString(secret)
}
