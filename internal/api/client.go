// Package api is the HTTP client for a running simulator's relay and for
// the flight archive that exported flights are uploaded to.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dronelab/tellosim/pkg/core"
)

var replyPattern = regexp.MustCompile(`^Command sent: ".*", drone responded: "(.*)"$`)

// Client talks to a tellosim relay or flight archive.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// SendCommand relays cmd and returns the drone's reply.
func (c *Client) SendCommand(cmd string) (string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/" + url.PathEscape(cmd))
	if err != nil {
		return "", fmt.Errorf("command request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("command %q returned status %d: %s", cmd, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	m := replyPattern.FindStringSubmatch(string(body))
	if m == nil {
		return "", fmt.Errorf("unexpected reply %q", body)
	}
	return m[1], nil
}

// Stats returns the drone's telemetry fields.
func (c *Client) Stats() (map[string]string, error) {
	var stats map[string]string
	if err := c.getJSON("/stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Flight returns the recorder's counters for the current flight.
func (c *Client) Flight() (map[string]any, error) {
	var flight map[string]any
	if err := c.getJSON("/flight", &flight); err != nil {
		return nil, err
	}
	return flight, nil
}

func (c *Client) getJSON(path string, v any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Upload sends an exported flight file to the archive.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filepath.Base(filePath))
		_ = writer.WriteField("flightName", meta.FlightName)
		_ = writer.WriteField("durationSeconds", fmt.Sprintf("%f", meta.DurationSeconds))
		_ = writer.WriteField("distanceMetres", fmt.Sprintf("%f", meta.DistanceMetres))
		_ = writer.WriteField("tag", meta.Tag)

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/flights/add", pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}
