package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/clients/httpjson"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

func TestClientSettle(t *testing.T) {
	payoutID := id.NewPayoutRequestID()

	t.Run("posts the settlement", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/settlements", r.URL.Path)
			assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
			var body ports.SettlementRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, payoutID, body.PayoutRequestID)
			assert.True(t, decimal.RequireFromString("1250.50").Equal(body.Amount))
			_, _ = w.Write([]byte(`{"success":true,"transaction_id":"wal-9"}`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second, httpjson.WithAPIKey("k"))
		require.NoError(t, err)
		res, err := c.Settle(context.Background(), ports.SettlementRequest{
			PayoutRequestID: payoutID,
			Amount:          decimal.RequireFromString("1250.50"),
			Currency:        "TOKEN",
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "wal-9", res.TransactionID)
	})

	t.Run("5xx is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second)
		require.NoError(t, err)
		_, err = c.Settle(context.Background(), ports.SettlementRequest{PayoutRequestID: payoutID})
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		var se *httpjson.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "maintenance", se.Body)
	})

	t.Run("4xx is not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad currency", http.StatusBadRequest)
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second)
		require.NoError(t, err)
		_, err = c.Settle(context.Background(), ports.SettlementRequest{PayoutRequestID: payoutID})
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("base url required", func(t *testing.T) {
		_, err := New(" ", time.Second)
		assert.Error(t, err)
	})
}

func TestFakeIsIdempotent(t *testing.T) {
	f := NewFake()
	f.FailNext = 1
	req := ports.SettlementRequest{PayoutRequestID: id.NewPayoutRequestID()}

	_, err := f.Settle(context.Background(), req)
	require.Error(t, err)

	first, err := f.Settle(context.Background(), req)
	require.NoError(t, err)
	second, err := f.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, 1, f.Settled())
}
