// Package e2e drives a running engine over HTTP with godog scenarios.
// Set E2E_BASE_URL (and E2E_ADMIN_TOKEN for admin steps) to run it.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario state shared by every step package.
type TestContext struct {
	baseURL    string
	adminToken string
	client     *http.Client

	lastStatus int
	lastBody   []byte
	vars       map[string]string
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		vars:       map[string]string{},
	}
}

func (tc *TestContext) reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.vars = map[string]string{}
}

func (tc *TestContext) do(method, path string, body any, admin bool) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+tc.adminToken)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GET(path string) error { return tc.do(http.MethodGet, path, nil, false) }

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, false)
}

func (tc *TestContext) AdminGET(path string) error { return tc.do(http.MethodGet, path, nil, true) }

func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, true)
}

func (tc *TestContext) AdminPUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body, true)
}

func (tc *TestContext) Status() int { return tc.lastStatus }

// Field reads a dotted path from the last JSON response.
func (tc *TestContext) Field(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		cur, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("field %q not in response: %s", path, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) Body() string { return string(tc.lastBody) }

func (tc *TestContext) Set(key, value string) { tc.vars[key] = value }

func (tc *TestContext) Get(key string) string { return tc.vars[key] }
