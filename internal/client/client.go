// Package client is a small typed client for the HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"seekite/internal/db"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type authResponse struct {
	Member db.Member `json:"member"`
	Token  string    `json:"token"`
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, name, pin string) (*db.Member, error) {
	var s authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"name": name, "pin": pin}, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s.Member, nil
}

// Signup creates a member and keeps the token for later calls.
func (c *Client) Signup(ctx context.Context, name, pin, color string) (*db.Member, error) {
	var s authResponse
	body := map[string]string{"name": name, "pin": pin, "color": color}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s.Member, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

func (c *Client) ListTopics(ctx context.Context) ([]db.TopicSummary, error) {
	var out struct {
		Topics []db.TopicSummary `json:"topics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/topics", nil, &out); err != nil {
		return nil, err
	}
	return out.Topics, nil
}

func (c *Client) CreateTopic(ctx context.Context, title, bibleRef, bibleText, question, worshipDate string) (*db.Topic, error) {
	body := map[string]string{
		"title":        title,
		"bible_ref":    bibleRef,
		"bible_text":   bibleText,
		"question":     question,
		"worship_date": worshipDate,
	}
	var out struct {
		Topic db.Topic `json:"topic"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/topics", body, &out); err != nil {
		return nil, err
	}
	return &out.Topic, nil
}

func (c *Client) ListMessages(ctx context.Context, topicID string) ([]db.MessageView, error) {
	var out struct {
		Messages []db.MessageView `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/topics/"+url.PathEscape(topicID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) PostMessage(ctx context.Context, topicID, content string, replyToID *string) (*db.MessageView, error) {
	body := map[string]interface{}{"content": content}
	if replyToID != nil {
		body["reply_to_id"] = *replyToID
	}
	var out struct {
		Message db.MessageView `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/topics/"+url.PathEscape(topicID)+"/messages", body, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *Client) MarkRead(ctx context.Context, topicID string) error {
	return c.do(ctx, http.MethodPost, "/api/topics/"+url.PathEscape(topicID)+"/read", nil, nil)
}

func (c *Client) ToggleReaction(ctx context.Context, messageID string, t db.ReactionType) (*db.ToggleResult, error) {
	var out db.ToggleResult
	if err := c.do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(messageID)+"/reactions",
		map[string]string{"type": string(t)}, &out); err != nil {
		return nil, err
	}
	if out.Type == "" {
		out.Type = t
	}
	return &out, nil
}
