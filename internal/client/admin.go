package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/keywire/internal/store"
)

var (
	ErrAdminBaseURLRequired = errors.New("client: admin base URL required")
	ErrKeyNotFound          = errors.New("client: key not found")
)

// Admin drives the server's HTTP admin plane: key CRUD, health, readiness.
type Admin struct {
	base   string
	token  string
	client *http.Client
}

func NewAdmin(baseURL, token string) (*Admin, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, ErrAdminBaseURLRequired
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Admin{
		base:   strings.TrimRight(base, "/"),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

type Health struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Keys           int    `json:"keys"`
	Bytes          int64  `json:"bytes"`
	ActiveSessions int64  `json:"active_sessions"`
}

func (a *Admin) Health(ctx context.Context) (Health, error) {
	var out Health
	body, err := a.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("client: decode health: %w", err)
	}
	return out, nil
}

func (a *Admin) Keys(ctx context.Context) ([]string, error) {
	body, err := a.do(ctx, http.MethodGet, "/keys", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("client: decode key list: %w", err)
	}
	return out.Keys, nil
}

func (a *Admin) Get(ctx context.Context, key uint64) ([]byte, error) {
	return a.do(ctx, http.MethodGet, "/keys/"+store.FormatKey(key), nil)
}

func (a *Admin) Put(ctx context.Context, key uint64, value []byte) error {
	_, err := a.do(ctx, http.MethodPut, "/keys/"+store.FormatKey(key), bytes.NewReader(value))
	return err
}

func (a *Admin) Delete(ctx context.Context, key uint64) error {
	_, err := a.do(ctx, http.MethodDelete, "/keys/"+store.FormatKey(key), nil)
	return err
}

func (a *Admin) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return nil, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrKeyNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("client: admin %s %s: %s", method, path, adminError(resp.StatusCode, data))
	}
	return data, nil
}

func adminError(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("status %d: %s", status, payload.Error)
	}
	return fmt.Sprintf("status %d", status)
}
