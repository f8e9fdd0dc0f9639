// Package platform implements the client for the remote video platform API:
// the three-phase resumable upload protocol (start, transfer, finish), the
// OAuth code exchange, and account/video metadata reads.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/beamup-io/beamup/internal/uploader"
	"github.com/beamup-io/beamup/pkg/config"
)

// APIError carries a non-2xx platform response with its raw body intact
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the video platform API. Upload-protocol calls use plain
// HTTP clients so that retry policy stays in the upload driver, scoped to
// chunk transfers; idempotent metadata reads go through a retrying client.
type Client struct {
	baseURL     string
	appID       string
	appSecret   string
	redirectURL string

	http     *http.Client
	transfer *http.Client
	retry    *retryablehttp.Client
}

// NewClient creates a platform client from configuration
func NewClient(cfg *config.PlatformConfig) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = cfg.RequestTimeout

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		redirectURL: cfg.RedirectURL,
		http:        &http.Client{Timeout: cfg.RequestTimeout},
		transfer:    &http.Client{Timeout: cfg.TransferTimeout},
		retry:       retryClient,
	}
}

// StartUploadSession opens a resumable upload session for an object of the
// declared size and returns the session identifier with the initial offset
// window. A missing start offset defaults to 0; a missing end offset is
// reported as nil so the driver computes its own chunk bound.
func (c *Client) StartUploadSession(ctx context.Context, targetID, token string, totalSize int64) (uploader.StartResult, error) {
	if targetID == "" || token == "" {
		return uploader.StartResult{}, fmt.Errorf("target id and access token must not be empty")
	}
	if totalSize <= 0 {
		return uploader.StartResult{}, fmt.Errorf("total size must be positive, got %d", totalSize)
	}

	form := url.Values{
		"upload_phase": {"start"},
		"file_size":    {strconv.FormatInt(totalSize, 10)},
		"access_token": {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.videosURL(targetID), strings.NewReader(form.Encode()))
	if err != nil {
		return uploader.StartResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return uploader.StartResult{}, fmt.Errorf("session start request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return uploader.StartResult{}, readAPIError(resp)
	}

	var body struct {
		SessionID   string `json:"upload_session_id"`
		StartOffset *int64 `json:"start_offset"`
		EndOffset   *int64 `json:"end_offset"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return uploader.StartResult{}, fmt.Errorf("failed to decode session start response: %w", err)
	}
	if body.SessionID == "" {
		return uploader.StartResult{}, fmt.Errorf("session start response missing upload_session_id")
	}

	result := uploader.StartResult{SessionID: body.SessionID, EndOffset: body.EndOffset}
	if body.StartOffset != nil {
		result.StartOffset = *body.StartOffset
	}

	log.Debug().
		Str("session_id", result.SessionID).
		Int64("file_size", totalSize).
		Msg("upload session started")
	return result, nil
}

// TransferChunk streams one chunk starting at the given offset and returns
// the offset window the endpoint wants next. The chunk body is forwarded
// as-is; it is never buffered here.
func (c *Client) TransferChunk(ctx context.Context, targetID, token, sessionID string, startOffset int64, chunk io.Reader, length int64) (uploader.OffsetWindow, error) {
	query := url.Values{
		"upload_phase":      {"transfer"},
		"upload_session_id": {sessionID},
		"start_offset":      {strconv.FormatInt(startOffset, 10)},
		"access_token":      {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.videosURL(targetID)+"?"+query.Encode(), chunk)
	if err != nil {
		return uploader.OffsetWindow{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = length

	resp, err := c.transfer.Do(req)
	if err != nil {
		return uploader.OffsetWindow{}, fmt.Errorf("chunk transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return uploader.OffsetWindow{}, readAPIError(resp)
	}

	// An empty body is a valid completion signal
	var body struct {
		StartOffset *int64 `json:"start_offset"`
		EndOffset   *int64 `json:"end_offset"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		return uploader.OffsetWindow{}, fmt.Errorf("failed to decode transfer response: %w", err)
	}

	return uploader.OffsetWindow{StartOffset: body.StartOffset, EndOffset: body.EndOffset}, nil
}

// FinishUploadSession closes the session with descriptive metadata and
// extracts the remote object identifier. The endpoint names the identifier
// either video_id or id; when neither is present the identifier is left
// empty and the raw metadata is still returned.
func (c *Client) FinishUploadSession(ctx context.Context, targetID, token, sessionID, title, description string) (uploader.FinishResult, error) {
	form := url.Values{
		"upload_phase":      {"finish"},
		"upload_session_id": {sessionID},
		"title":             {title},
		"description":       {description},
		"access_token":      {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.videosURL(targetID), strings.NewReader(form.Encode()))
	if err != nil {
		return uploader.FinishResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return uploader.FinishResult{}, fmt.Errorf("session finish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return uploader.FinishResult{}, readAPIError(resp)
	}

	raw := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil && err != io.EOF {
		return uploader.FinishResult{}, fmt.Errorf("failed to decode finish response: %w", err)
	}

	id := stringField(raw, "video_id")
	if id == "" {
		id = stringField(raw, "id")
	}
	if id == "" {
		log.Warn().Str("session_id", sessionID).Msg("finish response named no object identifier")
	}

	return uploader.FinishResult{RemoteObjectID: id, RawMetadata: raw}, nil
}

func (c *Client) videosURL(targetID string) string {
	return fmt.Sprintf("%s/%s/videos", c.baseURL, url.PathEscape(targetID))
}

// stringField reads a field that may arrive as a JSON string or number
func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}
