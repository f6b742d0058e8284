package maxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client communicates with the Max Bot API over HTTP. The access token is
// passed as a query parameter on every call, per the platform convention.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// APIError is a non-2xx response from the platform
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("max api: status %d code %q: %s", e.StatusCode, e.Code, e.Message)
}

// New creates a Client for the given base URL and bot token. The HTTP
// timeout must exceed the long-poll timeout, so it is left to per-request
// contexts instead of the client.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// Me returns the bot's own identity; used as a startup connectivity check
func (c *Client) Me(ctx context.Context) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user User
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("requesting bot identity: %w", err)
	}
	return &user, nil
}

// GetUpdates long-polls for new updates starting at marker. A zero marker
// asks for the oldest unconsumed batch. The call blocks up to timeout on
// the server side.
func (c *Client) GetUpdates(ctx context.Context, marker int64, timeout time.Duration) (*UpdateList, error) {
	query := url.Values{}
	query.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	if marker > 0 {
		query.Set("marker", strconv.FormatInt(marker, 10))
	}

	// Allow the server its full long-poll window plus slack
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var list UpdateList
	if err := c.do(ctx, http.MethodGet, "/updates", query, nil, &list); err != nil {
		return nil, fmt.Errorf("requesting updates: %w", err)
	}
	return &list, nil
}

// SendMessage posts a text message to a chat
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	query := url.Values{}
	query.Set("chat_id", strconv.FormatInt(chatID, 10))
	return c.sendMessage(ctx, query, text)
}

// SendToUser posts a text message to a user's dialog with the bot
func (c *Client) SendToUser(ctx context.Context, userID int64, text string) (*Message, error) {
	query := url.Values{}
	query.Set("user_id", strconv.FormatInt(userID, 10))
	return c.sendMessage(ctx, query, text)
}

func (c *Client) sendMessage(ctx context.Context, query url.Values, text string) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var resp sendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/messages", query, NewMessageBody{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return &resp.Message, nil
}

// GetChatMembers pages through the full membership of a chat
func (c *Client) GetChatMembers(ctx context.Context, chatID int64) ([]ChatMember, error) {
	path := fmt.Sprintf("/chats/%d/members", chatID)

	var members []ChatMember
	var marker *int64
	for {
		query := url.Values{}
		if marker != nil {
			query.Set("marker", strconv.FormatInt(*marker, 10))
		}

		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		var page chatMembersResponse
		err := c.do(reqCtx, http.MethodGet, path, query, nil, &page)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("requesting chat members: %w", err)
		}

		members = append(members, page.Members...)
		if page.Marker == nil || len(page.Members) == 0 {
			return members, nil
		}
		marker = page.Marker
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", c.token)

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = "unreadable error body"
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
