package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	uploadHTTPTimeout  = 5 * time.Minute
	httpTimeoutEnvKey  = "DEPOT_HTTP_TIMEOUT"
	sessionEnvKey      = "DEPOT_SESSION"
)

// Client is a simple HTTP client for the depot API.
type Client struct {
	baseURL      string
	http         *http.Client
	streamClient *http.Client
	sessionToken string
}

// NewClient creates a new API client. The session token defaults to the
// DEPOT_SESSION environment variable.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: httpTimeoutFromEnv()},
		streamClient: &http.Client{Timeout: uploadHTTPTimeout},
		sessionToken: strings.TrimSpace(os.Getenv(sessionEnvKey)),
	}
}

// SetSessionToken overrides the session token for subsequent requests.
func (c *Client) SetSessionToken(token string) {
	c.sessionToken = strings.TrimSpace(token)
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// Login exchanges credentials for a session token and adopts it.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, LoginRequest{Username: username, Password: password}, &resp)
	if err == nil {
		c.sessionToken = resp.Token
	}
	return resp, err
}

// Logout revokes the current session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil, nil)
	if err == nil {
		c.sessionToken = ""
	}
	return err
}

// Usage returns the caller's storage accounting.
func (c *Client) Usage(ctx context.Context) (UsageResponse, error) {
	var resp UsageResponse
	err := c.do(ctx, http.MethodGet, "/v1/me", nil, nil, &resp)
	return resp, err
}

// UploadFile is one file of a batch upload.
type UploadFile struct {
	Filename string
	Content  io.Reader
}

// Upload sends a batch of files as one multipart request.
func (c *Client) Upload(ctx context.Context, files []UploadFile, folder string) (UploadBatchResponse, error) {
	var resp UploadBatchResponse
	if len(files) == 0 {
		return resp, fmt.Errorf("at least one file is required")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if folder != "" {
		if err := form.WriteField("folder", folder); err != nil {
			return resp, err
		}
	}
	for _, f := range files {
		part, err := form.CreateFormFile("files", f.Filename)
		if err != nil {
			return resp, err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return resp, fmt.Errorf("read %s: %w", f.Filename, err)
		}
	}
	if err := form.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &buf)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.setAuthHeader(req)

	httpResp, err := c.streamClient.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// ListFiles returns the caller's files grouped by folder.
func (c *Client) ListFiles(ctx context.Context) (ListFilesResponse, error) {
	var resp ListFilesResponse
	err := c.do(ctx, http.MethodGet, "/v1/files", nil, nil, &resp)
	return resp, err
}

// Download streams one file's content to w and returns the server-side
// filename from the content disposition, if any.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	return c.stream(ctx, "/v1/files/"+url.PathEscape(id)+"/content", true, w)
}

// DownloadShared streams a public link's content without authentication.
func (c *Client) DownloadShared(ctx context.Context, token string, w io.Writer) (string, error) {
	return c.stream(ctx, "/s/"+url.PathEscape(token), false, w)
}

// DeleteFile removes one owned file.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(id), nil, nil, nil)
}

// CreateFolder creates one named folder.
func (c *Client) CreateFolder(ctx context.Context, name string) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodPost, "/v1/folders", nil, FolderCreateRequest{Name: name}, &resp)
	return resp, err
}

// Share creates (or returns) the public link for one owned file.
func (c *Client) Share(ctx context.Context, id string) (ShareResponse, error) {
	var resp ShareResponse
	err := c.do(ctx, http.MethodPost, "/v1/files/"+url.PathEscape(id)+"/share", nil, nil, &resp)
	return resp, err
}

// Unshare revokes the public links for one owned file.
func (c *Client) Unshare(ctx context.Context, id string) (UnshareResponse, error) {
	var resp UnshareResponse
	err := c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(id)+"/share", nil, nil, &resp)
	return resp, err
}

// Grant shares one owned file privately with another user.
func (c *Client) Grant(ctx context.Context, id, username string) (GrantResponse, error) {
	var resp GrantResponse
	err := c.do(ctx, http.MethodPost, "/v1/files/"+url.PathEscape(id)+"/grants", nil, GrantRequest{Username: username}, &resp)
	return resp, err
}

// ListShared returns files other users shared with the caller.
func (c *Client) ListShared(ctx context.Context) ([]SharedEntry, error) {
	var resp []SharedEntry
	err := c.do(ctx, http.MethodGet, "/v1/shared", nil, nil, &resp)
	return resp, err
}

// AdminGC runs an orphan blob sweep. With dryRun set nothing is removed.
func (c *Client) AdminGC(ctx context.Context, dryRun bool) (GCResponse, error) {
	var resp GCResponse
	query := url.Values{}
	if dryRun {
		query.Set("dry_run", "true")
	}
	err := c.do(ctx, http.MethodPost, "/v1/admin/gc", query, nil, &resp)
	return resp, err
}

func (c *Client) stream(ctx context.Context, path string, auth bool, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	if auth {
		c.setAuthHeader(req)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}

	filename := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			filename = params["filename"]
		}
	}
	_, err = io.Copy(w, resp.Body)
	return filename, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.ErrorCode = body.ErrorCode
		apiErr.Message = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if raw == "" {
		return defaultHTTPTimeout
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return defaultHTTPTimeout
}
