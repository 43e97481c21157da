// Package httpgw is a domain.Gateway client for a registry served over HTTP, such as
// cmd/registry-server or any endpoint speaking the registryapi contract.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"applicantsync/pkg/domain"
	"applicantsync/pkg/registryapi"
)

// Gateway calls a remote registry endpoint.
type Gateway struct {
	base   *url.URL
	client *http.Client
}

var _ domain.Gateway = (*Gateway)(nil)

// New validates baseURL. A nil client means http.DefaultClient; no timeout is imposed
// beyond what the caller's context or client carries.
func New(baseURL string, client *http.Client) (*Gateway, error) {
	if baseURL == "" {
		return nil, errors.New("http gateway: base url required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("http gateway: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http gateway: unsupported scheme %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{base: u, client: client}, nil
}

// Save implements domain.Gateway.
func (g *Gateway) Save(ctx context.Context, record domain.Fields, update bool, key domain.Key) error {
	method, path, body := http.MethodPost, registryapi.PathRows, registryapi.SaveRequest{Key: key, Record: record}
	if update {
		method = http.MethodPut
		path = registryapi.PathRows + "/" + url.PathEscape(string(key))
		body.Key = ""
	}
	return g.do(ctx, method, path, body, nil)
}

// Delete implements domain.Gateway.
func (g *Gateway) Delete(ctx context.Context, key domain.Key) error {
	return g.do(ctx, http.MethodDelete, registryapi.PathRows+"/"+url.PathEscape(string(key)), nil, nil)
}

// FetchStateHash implements domain.Gateway.
func (g *Gateway) FetchStateHash(ctx context.Context) (domain.StateHash, error) {
	var out registryapi.StateHashResponse
	if err := g.do(ctx, http.MethodGet, registryapi.PathStateHash, nil, &out); err != nil {
		return "", err
	}
	return out.Hash, nil
}

// FetchAll implements domain.Gateway.
func (g *Gateway) FetchAll(ctx context.Context) (domain.Table, error) {
	var out domain.Table
	if err := g.do(ctx, http.MethodGet, registryapi.PathRows, nil, &out); err != nil {
		return domain.Table{}, err
	}
	return out, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr registryapi.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %w", method, path, apiErr.Err())
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
