package restoration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"heritage-gallery-backend/internal/models"
)

const (
	// DefaultIntensity is used when a request leaves intensity unset.
	DefaultIntensity = 75

	requestTimeout = 60 * time.Second
)

type Client struct {
	baseURL     string
	httpClient  *http.Client
	imageClient *http.Client
	backoffs    []time.Duration
}

// Image is the input sent to the processing endpoint.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ProcessResponse struct {
	ProcessedImageURL string         `json:"processedImageUrl"`
	Message           string         `json:"message"`
	Status            string         `json:"status,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusError is a non-200 answer from the processing API. Client errors
// are not retried.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to process image: status %d: %s", e.Code, e.Message)
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		imageClient: newImageClient(publicOnly),
		backoffs:    []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// AllowPrivateNetworks lets FetchImage reach loopback and private addresses,
// for local development against a storage emulator.
func (c *Client) AllowPrivateNetworks() *Client {
	c.imageClient = newImageClient(nil)
	return c
}

// WithBackoffs replaces the delays between retries.
func (c *Client) WithBackoffs(backoffs ...time.Duration) *Client {
	c.backoffs = backoffs
	return c
}

// Process sends img to the super-resolution/restoration endpoint. intensity
// is a percentage in [1, 100].
func (c *Client) Process(ctx context.Context, img Image, processType models.ProcessingType, intensity int) (*ProcessResponse, error) {
	if !processType.Valid() {
		return nil, fmt.Errorf("%w: processType %q", models.ErrInvalidField, processType)
	}
	if intensity <= 0 {
		intensity = DefaultIntensity
	}
	if intensity > 100 {
		intensity = 100
	}

	body, contentType, err := encodeForm(img, processType, intensity)
	if err != nil {
		return nil, err
	}

	var result *ProcessResponse
	err = c.RetryWithBackoff(ctx, func() error {
		r, err := c.post(ctx, "/api/process-image", body, contentType)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, len(c.backoffs)+1)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func encodeForm(img Image, processType models.ProcessingType, intensity int) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := w.WriteField("process_type", string(processType)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("intensity", strconv.FormatFloat(float64(intensity)/100, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, contentType string) (*ProcessResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: msg}
	}

	var result ProcessResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(data))
	}
	if result.ProcessedImageURL == "" {
		return nil, fmt.Errorf("processedImageUrl is empty in response, body: %s", string(data))
	}
	return &result, nil
}

// RetryWithBackoff runs fn up to maxRetries times, sleeping between
// attempts. It stops early when ctx is done.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return err
		}
		if i == maxRetries-1 || i >= len(c.backoffs) {
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(c.backoffs[i]):
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
