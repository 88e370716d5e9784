// Package apiclient talks to a running clipforge daemon over its HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clipforge/internal/api"
	"clipforge/internal/cleanup"
	"clipforge/internal/services"
)

// Client wraps the daemon's REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL. A nil httpClient uses a default with no
// overall timeout so uploads and bundle downloads can run long.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURLFromBind turns a listen address such as ":7487" or "0.0.0.0:7487"
// into a dialable http URL.
func BaseURLFromBind(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap maps the status code back onto the shared error categories.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusConflict:
		return services.ErrConflict
	case http.StatusGatewayTimeout:
		return services.ErrTimeout
	case http.StatusServiceUnavailable:
		return services.ErrTransient
	default:
		return nil
	}
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// Status retrieves daemon runtime status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var resp api.DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Upload streams local files to the daemon as one multipart request.
func (c *Client) Upload(ctx context.Context, paths ...string) (api.UploadResponse, error) {
	var resp api.UploadResponse
	if len(paths) == 0 {
		return resp, fmt.Errorf("no files to upload")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return resp, fmt.Errorf("inspect %s: %w", p, err)
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, paths))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", pr)
	if err != nil {
		_ = pr.Close()
		return resp, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.do(req, &resp)
	_ = pr.Close()
	return resp, err
}

func writeParts(mw *multipart.Writer, paths []string) error {
	for _, p := range paths {
		if err := writePart(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// ListFiles returns uploaded files, optionally filtered by status.
func (c *Client) ListFiles(ctx context.Context, statuses ...string) ([]api.FileItem, error) {
	q := url.Values{}
	for _, s := range statuses {
		q.Add("status", s)
	}
	path := "/api/files"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp api.FileListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Submit starts a job.
func (c *Client) Submit(ctx context.Context, req api.SubmitJobRequest) (api.SubmitJobResponse, error) {
	var resp api.SubmitJobResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/jobs", req, &resp)
	return resp, err
}

// ListJobs returns up to limit jobs, newest first. limit <= 0 uses the
// daemon default.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]api.JobItem, error) {
	path := "/api/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.JobListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Job returns one job snapshot.
func (c *Client) Job(ctx context.Context, id string) (api.JobItem, error) {
	var resp api.JobItem
	err := c.doJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DownloadBundle copies a job's zip bundle into w.
func (c *Client) DownloadBundle(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+url.PathEscape(id)+"/bundle", nil)
	if err != nil {
		return 0, fmt.Errorf("build bundle request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download bundle: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

// Presets lists the named settings presets.
func (c *Client) Presets(ctx context.Context) ([]api.PresetItem, error) {
	var resp api.PresetListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/presets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Presets, nil
}

// CleanupStats reports audit counts, storage usage, and retention settings.
func (c *Client) CleanupStats(ctx context.Context) (cleanup.Stats, error) {
	var resp cleanup.Stats
	err := c.doJSON(ctx, http.MethodGet, "/api/cleanup/stats", nil, &resp)
	return resp, err
}

// RunCleanup triggers one sweep.
func (c *Client) RunCleanup(ctx context.Context) (api.CleanupResponse, error) {
	var resp api.CleanupResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/cleanup/run", nil, &resp)
	return resp, err
}

// ForceCleanup removes a job's outputs and bundle immediately.
func (c *Client) ForceCleanup(ctx context.Context, jobID string) (api.CleanupResponse, error) {
	var resp api.CleanupResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/cleanup/force/"+url.PathEscape(jobID), nil, &resp)
	return resp, err
}

// Pattern reports the global intro pattern toggle.
func (c *Client) Pattern(ctx context.Context) (api.PatternState, error) {
	var resp api.PatternState
	err := c.doJSON(ctx, http.MethodGet, "/api/pattern", nil, &resp)
	return resp, err
}

// SetPattern flips the global intro pattern toggle.
func (c *Client) SetPattern(ctx context.Context, enabled bool) (api.PatternState, error) {
	var resp api.PatternState
	err := c.doJSON(ctx, http.MethodPost, "/api/pattern", api.PatternRequest{Enabled: &enabled}, &resp)
	return resp, err
}

// ProcessWithPattern starts a single-file job with the intro pattern applied.
func (c *Client) ProcessWithPattern(ctx context.Context, fileID string) (api.SubmitJobResponse, error) {
	var resp api.SubmitJobResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/pattern/process", api.PatternProcessRequest{FileID: fileID}, &resp)
	return resp, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &Error{StatusCode: resp.StatusCode}
	var payload api.ErrorResponse
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Fields = payload.Fields
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
