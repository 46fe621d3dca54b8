package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FaceQuality contains face quality metrics.
type FaceQuality struct {
	Score     float64 `json:"score"`
	Blur      float64 `json:"blur"`
	IsFrontal bool    `json:"is_frontal"`
}

// EnrollResult contains face enrollment response.
type EnrollResult struct {
	UserID        string       `json:"user_id"`
	Success       bool         `json:"success"`
	FacesDetected int          `json:"faces_detected"`
	Quality       *FaceQuality `json:"quality"`
	Message       string       `json:"message"`
}

// SearchMatch represents a face match from gallery search.
type SearchMatch struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
	Name       string  `json:"name,omitempty"`
}

// SearchResult contains 1:N search results.
type SearchResult struct {
	Matches       []SearchMatch `json:"matches"`
	FacesDetected int           `json:"faces_detected"`
	Quality       *FaceQuality  `json:"quality"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // Face processing can take time
		},
	}
}

// Health checks if the face service is available.
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
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

// Healthy adapts Health for readiness checks. It logs the failure reason.
func (c *Client) Healthy(ctx context.Context) bool {
	if err := c.Health(ctx); err != nil {
		log.Printf("face service health: %v", err)
		return false
	}
	return true
}

// Enroll registers a face into the recognition gallery for 1:N search.
func (c *Client) Enroll(ctx context.Context, userID, name string, image []byte) (*EnrollResult, error) {
	if c.Skip {
		return &EnrollResult{
			UserID:        userID,
			Success:       true,
			FacesDetected: 1,
			Quality:       &FaceQuality{Score: 0.85, IsFrontal: true},
			Message:       "Face enrolled (mock)",
		}, nil
	}

	fields := map[string]string{"user_id": userID}
	if name != "" {
		fields["name"] = name
	}

	var out EnrollResult
	if err := c.postImage(ctx, "/enroll", fields, image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search performs 1:N face identification against the enrolled gallery.
func (c *Client) Search(ctx context.Context, image []byte, topK int, threshold float64) (*SearchResult, error) {
	if c.Skip {
		return &SearchResult{
			Matches:       []SearchMatch{{UserID: "mock-user", Similarity: 0.92, Name: "Mock User"}},
			FacesDetected: 1,
			Quality:       &FaceQuality{Score: 0.85, IsFrontal: true},
		}, nil
	}

	fields := map[string]string{"top_k": strconv.Itoa(topK)}
	if threshold > 0 {
		fields["threshold"] = strconv.FormatFloat(threshold, 'f', -1, 64)
	}

	var out SearchResult
	if err := c.postImage(ctx, "/search", fields, image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// postImage sends fields plus the image as a multipart "photo" part and decodes the JSON reply.
func (c *Client) postImage(ctx context.Context, path string, fields map[string]string, image []byte, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	fw, err := w.CreateFormFile("photo", "capture.jpg")
	if err != nil {
		return err
	}
	if _, err := fw.Write(image); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
