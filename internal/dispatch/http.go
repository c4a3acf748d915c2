package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/internal/ui/csrf"
)

// maxReplySize bounds how much of a reply is read.
const maxReplySize = 1 << 20

// HTTPClient talks to a running server's JSON API. It keeps cookies, so the
// CSRF token issued by the server is reused across requests.
type HTTPClient struct {
	base   *url.URL
	client *http.Client
	author string
}

// NewHTTPClient creates an HTTPClient for the server at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, author string) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		base:   base,
		client: &http.Client{Jar: jar, Timeout: timeout},
		author: author,
	}, nil
}

// Token returns the csrftoken cookie, fetching one from the server first if
// the jar has none.
func (c *HTTPClient) Token(ctx context.Context) (string, error) {
	if t := c.cookie(); t != "" {
		return t, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/qa/csrf/"), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if t := c.cookie(); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("server did not issue a %s cookie", csrf.CookieName)
}

func (c *HTTPClient) cookie() string {
	for _, ck := range c.client.Jar.Cookies(c.base) {
		if ck.Name == csrf.CookieName {
			return ck.Value
		}
	}
	return ""
}

// DeleteFile posts to /qa/delete-file/{id}/?question={questionID}.
func (c *HTTPClient) DeleteFile(ctx context.Context, questionID, fileID int64, token string) ([]byte, error) {
	path := fmt.Sprintf("/qa/delete-file/%d/?question=%d", fileID, questionID)
	return c.do(ctx, http.MethodPost, path, token, "application/json", nil)
}

// SaveAnswer posts the answer as JSON, or as multipart when files are attached.
func (c *HTTPClient) SaveAnswer(ctx context.Context, questionID int64, body string, uploads []qa.Upload, token string) ([]byte, error) {
	path := answerPath(questionID)
	if len(uploads) == 0 {
		payload, err := json.Marshal(map[string]string{"answer": body, "author": c.author})
		if err != nil {
			return nil, err
		}
		return c.do(ctx, http.MethodPost, path, token, "application/json", bytes.NewReader(payload))
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("answer", body); err != nil {
		return nil, err
	}
	if err := mw.WriteField("author", c.author); err != nil {
		return nil, err
	}
	for _, u := range uploads {
		part, err := mw.CreateFormFile("attachments", u.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, u.Body); err != nil {
			return nil, fmt.Errorf("read %s: %w", u.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, token, mw.FormDataContentType(), &buf)
}

// DeleteAnswer posts action=delete_answer.
func (c *HTTPClient) DeleteAnswer(ctx context.Context, questionID int64, token string) ([]byte, error) {
	payload := []byte(`{"action":"delete_answer"}`)
	return c.do(ctx, http.MethodPost, answerPath(questionID), token, "application/json", bytes.NewReader(payload))
}

// Snapshot fetches the current answer state.
func (c *HTTPClient) Snapshot(ctx context.Context, questionID int64) ([]byte, error) {
	return c.do(ctx, http.MethodGet, answerPath(questionID), "", "", nil)
}

// do returns the reply body whatever the status code; rejections are
// carried in the JSON envelope.
func (c *HTTPClient) do(ctx context.Context, method, path, token, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(csrf.HeaderName, token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return data, nil
}

func (c *HTTPClient) url(path string) string {
	return c.base.String() + path
}

func answerPath(questionID int64) string {
	return fmt.Sprintf("/qa/questions/%d/answer/", questionID)
}
