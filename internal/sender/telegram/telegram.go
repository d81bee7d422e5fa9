// Package telegram delivers chat messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/utafrali/furnishop/pkg/httpclient"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Config identifies the bot and the chat it posts to.
type Config struct {
	BaseURL string
	Token   string
	ChatID  string
}

// Enabled reports whether both the token and the chat are configured.
func (c Config) Enabled() bool {
	return c.Token != "" && c.ChatID != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Sender posts messages with sendMessage.
type Sender struct {
	client  *httpclient.CircuitBreakerClient
	cfg     Config
	baseURL string
}

// New creates a sender that calls the Bot API through client.
func New(cfg Config, client *httpclient.CircuitBreakerClient) *Sender {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Sender{client: client, cfg: cfg, baseURL: base}
}

// Name implements sender.Sender.
func (s *Sender) Name() string {
	return "telegram"
}

// Send implements sender.Sender.
func (s *Sender) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                s.cfg.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	resp, err := s.client.Post(ctx, s.methodURL("sendMessage"), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", s.redact(err))
	}

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "telegram")
	}
	_ = resp.Body.Close()
	return nil
}

func (s *Sender) methodURL(method string) string {
	return s.baseURL + "/bot" + s.cfg.Token + "/" + method
}

// redact keeps the bot token out of transport errors, which embed the URL.
// The wrapped error stays reachable for errors.Is and errors.As.
func (s *Sender) redact(err error) error {
	if s.cfg.Token == "" {
		return err
	}
	return &redactedError{err: err, token: s.cfg.Token}
}

type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "<token>")
}

func (e *redactedError) Unwrap() error {
	return e.err
}
