// Package wallet talks to the external wallet ledger that moves settled
// payouts.
package wallet

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/clients/httpjson"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

// Client calls POST /v1/settlements. The payout request id is sent as the
// idempotency key.
type Client struct {
	http *httpjson.Client
}

func New(baseURL string, timeout time.Duration, opts ...httpjson.Option) (*Client, error) {
	c, err := httpjson.New("wallet", baseURL, timeout, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{http: c}, nil
}

func (c *Client) Settle(ctx context.Context, req ports.SettlementRequest) (ports.SettlementResult, error) {
	var res ports.SettlementResult
	if err := c.http.Do(ctx, http.MethodPost, "/v1/settlements", req, &res); err != nil {
		return ports.SettlementResult{}, err
	}
	return res, nil
}

var errSimulatedOutage = errors.New("wallet: simulated outage")

// Fake settles in process. Repeated calls for the same payout request return
// the first transaction id.
type Fake struct {
	mu      sync.Mutex
	settled map[id.PayoutRequestID]string
	Latency time.Duration
	// FailNext makes the next n calls fail.
	FailNext int
}

func NewFake() *Fake {
	return &Fake{settled: make(map[id.PayoutRequestID]string)}
}

func (f *Fake) Settle(ctx context.Context, req ports.SettlementRequest) (ports.SettlementResult, error) {
	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return ports.SettlementResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext > 0 {
		f.FailNext--
		return ports.SettlementResult{}, errSimulatedOutage
	}
	tx, ok := f.settled[req.PayoutRequestID]
	if !ok {
		tx = "fake-" + req.PayoutRequestID.String()
		f.settled[req.PayoutRequestID] = tx
	}
	return ports.SettlementResult{Success: true, TransactionID: tx}, nil
}

// Settled reports how many distinct payout requests were paid.
func (f *Fake) Settled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settled)
}
