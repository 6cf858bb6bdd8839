// Package history reads the stored transcript of a chat room from the REST API.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/umar/donaty-chat/internal/models"
)

const defaultErrorMessage = "No se pudo cargar el chat"

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 4 << 20

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Msg        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("history: %s (status %d)", e.Msg, e.StatusCode)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a fetcher for apiBase, e.g. "http://localhost:4000/api".
func NewClient(apiBase string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(apiBase, "/"),
		httpClient: httpClient,
	}
}

type historyResponse struct {
	Items []models.Message `json:"items"`
	Msg   string           `json:"msg,omitempty"`
}

// Fetch returns the room's messages in server order.
func (c *Client) Fetch(ctx context.Context, roomID, token string) ([]models.Message, error) {
	if roomID == "" {
		return nil, errors.New("history: room id is required")
	}

	endpoint := c.baseURL + "/chat/" + url.PathEscape(roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("history: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("history: read body: %w", err)
	}

	// Error bodies may be empty or not JSON at all.
	var data historyResponse
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := data.Msg
		if decodeErr != nil || msg == "" {
			msg = defaultErrorMessage
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Msg: msg}
	}
	// A 2xx body without items is an empty room.
	if decodeErr != nil || data.Items == nil {
		return []models.Message{}, nil
	}
	return data.Items, nil
}
