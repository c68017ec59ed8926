// Package rest implements the paged history, conversation list and send
// endpoints over HTTP/JSON.
package rest

import (
	"bytes"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

var (
	_ contract.HistoryFetcher     = (*Client)(nil)
	_ contract.ConversationLister = (*Client)(nil)
	_ contract.MessageSender      = (*Client)(nil)
)

type Client struct {
	log        *slog.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(log *slog.Logger, baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// FetchHistory returns the newest page when cursor is nil, otherwise the page
// of messages strictly older than the cursor.
func (c *Client) FetchHistory(ctx context.Context, key domain.ConversationKey, cursor *string) (domain.HistoryPage, error) {
	query := url.Values{}
	if cursor != nil {
		query.Set("cursor", *cursor)
	}
	var page domain.HistoryPage
	if err := c.do(ctx, http.MethodGet, messagesPath(key), query, nil, &page); err != nil {
		return domain.HistoryPage{}, err
	}
	page.Messages = c.wellFormed(page.Messages)
	return page, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var summaries []domain.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, &summaries); err != nil {
		return nil, err
	}
	return lo.Filter(summaries, func(s domain.ConversationSummary, _ int) bool {
		return s.PartnerID != ""
	}), nil
}

func (c *Client) SendMessage(ctx context.Context, key domain.ConversationKey, draft domain.Draft) (domain.Message, error) {
	var message domain.Message
	if err := c.do(ctx, http.MethodPost, messagesPath(key), nil, draft, &message); err != nil {
		return domain.Message{}, err
	}
	if message.ID == "" {
		return domain.Message{}, fmt.Errorf("%w: sent message without id", errors.ErrInvalidPayload)
	}
	return message, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", errors.ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", errors.ErrInvalidPayload, method, path, err)
	}
	return nil
}

// wellFormed drops page entries that cannot be deduplicated.
func (c *Client) wellFormed(messages []domain.Message) []domain.Message {
	valid := lo.Filter(messages, func(m domain.Message, _ int) bool { return m.ID != "" })
	if dropped := len(messages) - len(valid); dropped > 0 {
		c.log.Warn(fmt.Sprintf("%d history messages without id dropped", dropped))
	}
	return valid
}

func messagesPath(key domain.ConversationKey) string {
	return "/conversations/" + url.PathEscape(string(key)) + "/messages"
}
