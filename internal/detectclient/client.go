package detectclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"proctoring/internal/proctor"
)

// Client calls the object-detection microservice. The model behind it is an
// external dependency; this client only relies on the label contract
// (person, cell phone, book, laptop).
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, Detect returns a canned single-person
// frame so the pipeline runs without the model service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // inference can take time
		},
	}
}

var _ proctor.ObjectDetector = (*Client)(nil)

// Detect runs one inference pass over a frame and returns labeled objects.
func (c *Client) Detect(ctx context.Context, frame proctor.Frame) ([]proctor.Detection, error) {
	if c.Skip {
		return []proctor.Detection{{Label: "person", Score: 0.95}}, nil
	}
	if len(frame.JPEG) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	body, _ := json.Marshal(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(frame.JPEG),
		"width":  frame.Width,
		"height": frame.Height,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detector error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Detections []proctor.Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Detections, nil
}

// Health checks if the detector service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("detector unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("detector unhealthy: %s", resp.Status)
	}

	return nil
}
