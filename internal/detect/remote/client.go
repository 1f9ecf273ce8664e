// Package remote implements a detector backed by an HTTP inference service.
//
// Each chip is posted as a PNG in the "file" field of a multipart form. The
// service answers with
//
//	{"detections": [{"class_id": 2, "name": "car", "confidence": 0.91, "xyxy": [x1, y1, x2, y2]}]}
//
// where xyxy is in the pixel coordinates of the posted chip.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// DefaultTimeout bounds one inference request.
const DefaultTimeout = 60 * time.Second

// Detection is one record of the service response.
type Detection struct {
	ClassID    int       `json:"class_id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	XYXY       []float64 `json:"xyxy"`
}

// Response is the service response body.
type Response struct {
	Detections []Detection `json:"detections"`
}

// Client posts chips to an inference endpoint.
type Client struct {
	url    string
	client *http.Client
	header http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithHeader adds a header, such as an API key, to every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.header.Set(key, value) }
}

// New creates a client for the inference endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect sends img to the service and returns its detections.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]detect.Raw, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "chip.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode chip: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]detect.Raw, 0, len(result.Detections))
	for i, d := range result.Detections {
		if len(d.XYXY) != 4 {
			return nil, fmt.Errorf("detection %d: xyxy has %d values, want 4", i, len(d.XYXY))
		}
		out = append(out, detect.Raw{
			ClassID:    d.ClassID,
			Label:      d.Name,
			Confidence: d.Confidence,
			Box:        geometry.NewBox(d.XYXY[0], d.XYXY[1], d.XYXY[2], d.XYXY[3]),
		})
	}
	return out, nil
}

// CheckHealth queries the service's /health endpoint.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.url, "/")+"/health", nil)
	if err != nil {
		return err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
