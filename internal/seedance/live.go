package seedance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"videobot/internal/infra"
	"videobot/internal/storage"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("seedance: api key is required")

const (
	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 60
	defaultChunkSize       = 8192
	defaultRequestTimeout  = 60 * time.Second
)

// Options configures the live Seedance client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	VideoStore *storage.FileStore

	// PollInterval and MaxPollAttempts bound the status poll loop; the
	// defaults allow five minutes of generation time.
	PollInterval    time.Duration
	MaxPollAttempts int
	// ChunkSize is the fixed read size used while streaming the artifact
	// to local storage.
	ChunkSize int
}

// Client performs HTTP calls against the Seedance (BytePlus) video API.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	logger          *infra.Logger
	store           *storage.FileStore
	pollInterval    time.Duration
	maxPollAttempts int
	chunkSize       int
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

// NewClient constructs a live client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.VideoStore == nil {
		return nil, fmt.Errorf("seedance: video store is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxAttempts := opts.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPollAttempts
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.seedance.example.com/v1"
	}
	return &Client{
		apiKey:          opts.APIKey,
		baseURL:         baseURL,
		httpClient:      httpClient,
		logger:          opts.Logger,
		store:           opts.VideoStore,
		pollInterval:    pollInterval,
		maxPollAttempts: maxAttempts,
		chunkSize:       chunkSize,
	}, nil
}

// GenerateVideo submits the request, polls the job until it terminates or
// the attempt ceiling is reached, and downloads the artifact on success.
// The context is honored between polls, so an abandoned generation stops
// burning attempts once its caller cancels.
func (c *Client) GenerateVideo(ctx context.Context, req Request) (*Result, error) {
	jobID, failed, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return failed, nil
	}

	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		status, err := c.fetchStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if status != nil {
			switch Status(status.Status) {
			case StatusCompleted:
				return c.download(ctx, jobID, status)
			case StatusFailed:
				msg := status.Error
				if msg == "" {
					msg = "unknown error"
				}
				return failedResult(jobID, msg), nil
			case StatusPending, StatusProcessing:
				// keep polling
			default:
				return failedResult(jobID, "malformed status payload"), nil
			}
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return failedResult(jobID, fmt.Sprintf("timeout waiting for generation after %d attempts", c.maxPollAttempts)), nil
}

// JobStatus fetches the provider-side state of a job once.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jobURL(jobID), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failedResult(jobID, fmt.Sprintf("api error: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failedResult(jobID, fmt.Sprintf("api error: status %d", resp.StatusCode)), nil
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return failedResult(jobID, "malformed status payload"), nil
	}
	st := Status(status.Status)
	if st == "" {
		st = StatusPending
	}
	return &Result{
		JobID:        jobID,
		Status:       st,
		Progress:     status.Progress,
		ErrorMessage: status.Error,
	}, nil
}

// CancelJob asks the provider to abandon the job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.jobURL(jobID), nil)
	if err != nil {
		return false, err
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// submit uploads the prompt, parameters and images. A provider rejection
// comes back as a failed Result, not an error.
func (c *Client) submit(ctx context.Context, req Request) (string, *Result, error) {
	resolution := req.Resolution
	if resolution == "" {
		resolution = DefaultResolution
	}

	body, contentType, err := c.multipartBody(req, resolution)
	if err != nil {
		return "", nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", body)
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", failedResult("", fmt.Sprintf("api error: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", failedResult("", fmt.Sprintf("api error: %s", string(msg))), nil
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil || submitted.JobID == "" {
		return "", failedResult("", "api error: missing job id in response"), nil
	}

	if c.logger != nil {
		c.logger.Debug().Str("provider_job_id", submitted.JobID).Msg("seedance: job submitted")
	}
	return submitted.JobID, nil, nil
}

func (c *Client) multipartBody(req Request, resolution string) (*os.File, string, error) {
	// Spool the multipart payload to a temp file so large images are not
	// buffered in memory.
	tmp, err := os.CreateTemp("", "seedance-upload-*")
	if err != nil {
		return nil, "", fmt.Errorf("seedance: create upload spool: %w", err)
	}
	os.Remove(tmp.Name())

	mw := multipart.NewWriter(tmp)
	fields := map[string]string{
		"prompt":                req.Prompt,
		"resolution":            resolution,
		"character_consistency": strconv.FormatBool(len(req.Images) > 1),
	}
	if req.Duration > 0 {
		fields["duration"] = strconv.Itoa(req.Duration)
	}
	if req.Seed != nil {
		fields["seed"] = strconv.Itoa(*req.Seed)
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			tmp.Close()
			return nil, "", fmt.Errorf("seedance: write field %s: %w", name, err)
		}
	}

	for _, imagePath := range req.Images {
		f, err := os.Open(imagePath)
		if err != nil {
			tmp.Close()
			return nil, "", fmt.Errorf("seedance: open image: %w", err)
		}
		part, err := mw.CreateFormFile("images", filepath.Base(imagePath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			tmp.Close()
			return nil, "", fmt.Errorf("seedance: attach image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		tmp.Close()
		return nil, "", fmt.Errorf("seedance: finalize upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, "", fmt.Errorf("seedance: rewind upload spool: %w", err)
	}
	return tmp, mw.FormDataContentType(), nil
}

// fetchStatus polls the job endpoint once. Transient HTTP failures return a
// nil status so the loop retries; a malformed payload is terminal.
func (c *Client) fetchStatus(ctx context.Context, jobID string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jobURL(jobID), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return &statusResponse{Status: "malformed"}, nil
	}
	if status.Status == "" {
		status.Status = string(StatusPending)
	}
	return &status, nil
}

// download streams the finished artifact into the video store. A download
// failure after a completed status is distinct from a generation failure.
func (c *Client) download(ctx context.Context, jobID string, status *statusResponse) (*Result, error) {
	if status.VideoURL == "" {
		return failedResult(jobID, "download failed: no video url"), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, status.VideoURL, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failedResult(jobID, fmt.Sprintf("download failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failedResult(jobID, fmt.Sprintf("download failed: status %d", resp.StatusCode)), nil
	}

	path, size, err := c.store.WriteStream(ctx, jobID+".mp4", &chunkReader{r: resp.Body, size: c.chunkSize})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failedResult(jobID, fmt.Sprintf("download failed: %v", err)), nil
	}

	if c.logger != nil {
		c.logger.Info().Str("provider_job_id", jobID).Int64("bytes", size).Msg("seedance: artifact downloaded")
	}
	return &Result{
		JobID:        jobID,
		Status:       StatusCompleted,
		ArtifactPath: path,
		Progress:     status.Progress,
	}, nil
}

func (c *Client) jobURL(jobID string) string {
	return c.baseURL + "/jobs/" + jobID
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// chunkReader caps every Read at a fixed size so the artifact is copied to
// disk in predictable chunks.
type chunkReader struct {
	r    io.Reader
	size int
}

func (cr *chunkReader) Read(p []byte) (int, error) {
	if len(p) > cr.size {
		p = p[:cr.size]
	}
	return cr.r.Read(p)
}

var _ Generator = (*Client)(nil)
