package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const channelType = "messaging"

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat provider %s: status %d: %s", e.Op, e.Status, e.Body)
}

type HTTPProviderConfig struct {
	APIKey       string
	APISecret    string
	ChatBaseURL  string
	VideoBaseURL string
	Client       *http.Client
}

// HTTPProvider talks to the chat and video REST APIs with a server token.
type HTTPProvider struct {
	apiKey   string
	chatURL  string
	videoURL string
	tokens   *TokenIssuer
	client   *http.Client
}

func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		apiKey:   cfg.APIKey,
		chatURL:  strings.TrimRight(cfg.ChatBaseURL, "/"),
		videoURL: strings.TrimRight(cfg.VideoBaseURL, "/"),
		tokens:   NewTokenIssuer(cfg.APISecret),
		client:   client,
	}
}

func (p *HTTPProvider) CreateChannel(ctx context.Context, channelID string, meta Metadata) error {
	path := fmt.Sprintf("/channels/%s/%s/query", channelType, url.PathEscape(channelID))
	body := map[string]any{"data": meta}
	return p.do(ctx, "create channel", http.MethodPost, p.chatURL+path, body, false)
}

func (p *HTTPProvider) AddMembers(ctx context.Context, channelID string, members []string) error {
	path := fmt.Sprintf("/channels/%s/%s", channelType, url.PathEscape(channelID))
	body := map[string]any{"add_members": members}
	return p.do(ctx, "add members", http.MethodPost, p.chatURL+path, body, false)
}

// DeleteChannel treats a missing channel as already deleted.
func (p *HTTPProvider) DeleteChannel(ctx context.Context, channelID string) error {
	path := fmt.Sprintf("/channels/%s/%s", channelType, url.PathEscape(channelID))
	return p.do(ctx, "delete channel", http.MethodDelete, p.chatURL+path, nil, true)
}

// DeleteCall treats a missing call as already deleted.
func (p *HTTPProvider) DeleteCall(ctx context.Context, channelID string, hard bool) error {
	path := fmt.Sprintf("/api/v2/video/call/default/%s/delete", url.PathEscape(channelID))
	body := map[string]any{"hard": hard}
	return p.do(ctx, "delete call", http.MethodPost, p.videoURL+path, body, true)
}

func (p *HTTPProvider) do(ctx context.Context, op, method, rawURL string, body any, notFoundOK bool) error {
	token, err := p.tokens.ServerToken()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("chat provider %s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("chat provider %s: %w", op, err)
	}
	q := u.Query()
	q.Set("api_key", p.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("chat provider %s: %w", op, err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Stream-Auth-Type", "jwt")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat provider %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFoundOK {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}
