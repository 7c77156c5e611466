// File path: internal/docstore/remote.go
package docstore

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
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
)

var errNotFound = errors.New("document not found")

// RemoteStore talks to an HTTP document service exposing
// GET/PUT {base}/v1/documents/{owner}/{doc_key}.
type RemoteStore struct {
	httpClient *http.Client
	transport  *http.Transport

	baseURL string
	apiKey  string

	mu        sync.RWMutex
	available bool
}

// NewRemoteStore builds a client from cfg. The service is probed once; an
// unreachable service still yields a client so a FallbackStore can route
// around it.
func NewRemoteStore(ctx context.Context, cfg Config) (*RemoteStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.RemoteURL), "/")
	if base == "" {
		return nil, errors.New("remote url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	logger := common.Logger()
	logger.Info("docstore: initializing remote client", "url", base, "timeout", cfg.RemoteTimeout)

	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}
	client := &RemoteStore{
		httpClient: &http.Client{Timeout: cfg.RemoteTimeout, Transport: transport},
		transport:  transport,
		baseURL:    base,
		apiKey:     cfg.RemoteAPIKey,
	}
	if err := client.Ping(ctx); err != nil {
		logger.Warn("docstore: remote store unreachable", "url", base, "error", err)
		return client, nil
	}
	logger.Info("docstore: remote store connection established")
	return client, nil
}

func (c *RemoteStore) Mode() Mode { return ModeRemote }

// Available reports the result of the most recent request.
func (c *RemoteStore) Available() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

func (c *RemoteStore) setAvailable(ok bool) {
	c.mu.Lock()
	c.available = ok
	c.mu.Unlock()
}

// Ping checks the remote health endpoint.
func (c *RemoteStore) Ping(ctx context.Context) error {
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/healthz", nil, nil)
	c.setAvailable(err == nil)
	return err
}

func (c *RemoteStore) endpoint(key Key) string {
	return fmt.Sprintf("%s/v1/documents/%s/%s", c.baseURL, url.PathEscape(key.OwnerKey()), url.PathEscape(key.DocKey()))
}

func (c *RemoteStore) Load(ctx context.Context, key Key) (Document, error) {
	if err := key.validate(); err != nil {
		return nil, wrapErr("load", ModeRemote, key, err)
	}
	start := time.Now()
	var doc Document
	err := c.doRequest(ctx, http.MethodGet, c.endpoint(key), nil, &doc)
	if errors.Is(err, errNotFound) {
		telemetry.RecordStoreOp("load", string(ModeRemote), time.Since(start), nil)
		return nil, nil
	}
	telemetry.RecordStoreOp("load", string(ModeRemote), time.Since(start), err)
	if err != nil {
		return nil, wrapErr("load", ModeRemote, key, err)
	}
	return doc, nil
}

func (c *RemoteStore) Save(ctx context.Context, key Key, doc Document) (SaveResult, error) {
	if err := key.validate(); err != nil {
		return SaveResult{}, wrapErr("save", ModeRemote, key, err)
	}
	if doc == nil {
		doc = Document{}
	}
	start := time.Now()
	err := c.doRequest(ctx, http.MethodPut, c.endpoint(key), doc, nil)
	telemetry.RecordStoreOp("save", string(ModeRemote), time.Since(start), err)
	if err != nil {
		return SaveResult{}, wrapErr("save", ModeRemote, key, err)
	}
	return SaveResult{OK: true, Mode: ModeRemote, Path: key.String()}, nil
}

func (c *RemoteStore) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	if c == nil {
		return errors.New("remote store not configured")
	}
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setAvailable(false)
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		c.setAvailable(true)
		return errNotFound
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		c.setAvailable(false)
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: %d %s", ErrRemoteUnavailable, method, endpoint, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	c.setAvailable(true)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote %s %s failed: %d %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close releases pooled connections.
func (c *RemoteStore) Close() error {
	if c == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

var _ Store = (*RemoteStore)(nil)
