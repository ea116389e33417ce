package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"supportchat/models"
)

const (
	// DefaultRequestTimeout bounds each REST call when the caller's context
	// carries no deadline of its own.
	DefaultRequestTimeout = 15 * time.Second
)

var (
	// ErrUnexpectedStatus indicates the backend answered outside the 2xx range.
	ErrUnexpectedStatus = errors.New("api: unexpected response status")
)

// Client is a bearer-token JSON client for the chat backend REST surface.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a REST client for the given base URL. A nil httpClient
// falls back to one with DefaultRequestTimeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type historyResponse struct {
	Messages []models.Message `json:"messages"`
}

// History fetches the full message history of one conversation.
func (c *Client) History(ctx context.Context, userID string) ([]models.Message, error) {
	if userID == "" {
		return nil, errors.New("api: user id is required")
	}

	var out historyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats/"+userID, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch history for %q: %w", userID, err)
	}
	return out.Messages, nil
}

type sendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// SendMessage persists one message into a user's conversation and returns the
// stored copy.
func (c *Client) SendMessage(ctx context.Context, userID string, msg models.Message) (models.Message, error) {
	if userID == "" {
		return models.Message{}, errors.New("api: user id is required")
	}

	body := sendMessageRequest{Sender: msg.Sender, Content: msg.Content}
	var stored models.Message
	if err := c.doJSON(ctx, http.MethodPost, "/api/chats/"+userID, body, &stored); err != nil {
		return models.Message{}, fmt.Errorf("persist message for %q: %w", userID, err)
	}

	// The backend does not echo the client correlation id; keep it so the
	// optimistic copy and the push mirror stay reconcilable.
	if stored.ID == "" {
		stored.ID = msg.ID
	}
	return stored, nil
}

// ListUsers fetches the full counterpart user roster.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, fmt.Errorf("fetch user roster: %w", err)
	}
	return users, nil
}

type uploadResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload sends local files as a multipart request and returns their hosted
// URLs. Used by the storefront content-editing surface, not by the chat core.
func (c *Client) Upload(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.New("api: at least one file is required")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, path := range paths {
		if err := appendFilePart(writer, path); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload files: %w (%s)", ErrUnexpectedStatus, resp.Status)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	urls := make([]string, 0, len(out.Data))
	for _, item := range out.Data {
		urls = append(urls, item.URL)
	}
	return urls, nil
}

func appendFilePart(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload file %q: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file %q: %w", path, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy upload file %q: %w", path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w (%s)", ErrUnexpectedStatus, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
