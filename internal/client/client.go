package client

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Brownie44l1/fracture-api/internal/handlers"
	"github.com/Brownie44l1/fracture-api/internal/policy"
	"github.com/go-resty/resty/v2"
)

// Client talks to a running analysis server.
type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

// AnalysisError is an error body returned by /analyze.
type AnalysisError struct {
	Message string
	Status  int
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed (status %d): %s", e.Status, e.Message)
}

func (c *Client) Status() (*handlers.RootResponse, error) {
	var out handlers.RootResponse
	res, err := c.http.R().SetResult(&out).Get("/")
	if err != nil {
		return nil, fmt.Errorf("error requesting status: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("status request returned %d", res.StatusCode())
	}
	return &out, nil
}

func (c *Client) Health() (*handlers.HealthResponse, error) {
	var out handlers.HealthResponse
	res, err := c.http.R().SetResult(&out).Get("/health")
	if err != nil {
		return nil, fmt.Errorf("error requesting health: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("health request returned %d", res.StatusCode())
	}
	return &out, nil
}

// Analyze uploads one image. Error bodies come back as *AnalysisError
// whatever the status code.
func (c *Client) Analyze(filename string, contents []byte, language string) (*policy.Verdict, error) {
	var envelope struct {
		policy.Verdict
		Error string `json:"error"`
	}

	res, err := c.http.R().
		SetFileReader("file", filepath.Base(filename), bytes.NewReader(contents)).
		SetFormData(map[string]string{"language": language}).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("error uploading %s: %w", filename, err)
	}

	if envelope.Error != "" {
		return nil, &AnalysisError{Message: envelope.Error, Status: res.StatusCode()}
	}
	if res.IsError() {
		return nil, &AnalysisError{Message: res.String(), Status: res.StatusCode()}
	}

	return &envelope.Verdict, nil
}
