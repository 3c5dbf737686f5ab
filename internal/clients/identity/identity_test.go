package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

func TestIsVerified(t *testing.T) {
	verified := id.NewUserID()
	broken := id.NewUserID()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/users/" + verified.String() + "/verification":
			_, _ = w.Write([]byte(`{"verified":true}`))
		case "/v1/users/" + broken.String() + "/verification":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	ok, err := c.IsVerified(context.Background(), verified)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsVerified(context.Background(), id.NewUserID())
	require.NoError(t, err)
	assert.False(t, ok, "unknown users are unverified")

	_, err = c.IsVerified(context.Background(), broken)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
