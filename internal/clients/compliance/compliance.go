// Package compliance reads dispute and AML flags for an actor.
package compliance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/clients/httpjson"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

type Client struct {
	http *httpjson.Client
}

func New(baseURL string, timeout time.Duration, opts ...httpjson.Option) (*Client, error) {
	c, err := httpjson.New("compliance", baseURL, timeout, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{http: c}, nil
}

type disputeResponse struct {
	OpenDispute bool `json:"open_dispute"`
}

type amlResponse struct {
	Level string `json:"level"`
}

func (c *Client) HasOpenDispute(ctx context.Context, actorID id.ActorID) (bool, error) {
	var res disputeResponse
	path := "/v1/actors/" + url.PathEscape(actorID.String()) + "/disputes"
	if err := c.http.Do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return false, err
	}
	return res.OpenDispute, nil
}

func (c *Client) AMLRiskLevel(ctx context.Context, actorID id.ActorID) (ports.AMLLevel, error) {
	var res amlResponse
	path := "/v1/actors/" + url.PathEscape(actorID.String()) + "/aml"
	if err := c.http.Do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return "", err
	}
	switch level := ports.AMLLevel(res.Level); level {
	case ports.AMLLow, ports.AMLMedium, ports.AMLHigh, ports.AMLCritical:
		return level, nil
	}
	return "", fmt.Errorf("compliance: unknown aml level %q", res.Level)
}

// Fake reports no disputes and low AML risk unless flagged.
type Fake struct {
	mu       sync.RWMutex
	disputes map[id.ActorID]bool
	levels   map[id.ActorID]ports.AMLLevel
}

func NewFake() *Fake {
	return &Fake{disputes: map[id.ActorID]bool{}, levels: map[id.ActorID]ports.AMLLevel{}}
}

func (f *Fake) SetDispute(actorID id.ActorID, open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disputes[actorID] = open
}

func (f *Fake) SetAML(actorID id.ActorID, level ports.AMLLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[actorID] = level
}

func (f *Fake) HasOpenDispute(_ context.Context, actorID id.ActorID) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.disputes[actorID], nil
}

func (f *Fake) AMLRiskLevel(_ context.Context, actorID id.ActorID) (ports.AMLLevel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if level, ok := f.levels[actorID]; ok {
		return level, nil
	}
	return ports.AMLLow, nil
}
