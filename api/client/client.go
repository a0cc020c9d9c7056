package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aouyang1/demomode/api/models"
	"github.com/aouyang1/demomode/content"
)

// DemoClient talks to a running demo daemon.
type DemoClient struct {
	baseURL  string
	password string
	client   *http.Client
}

func NewDemoClient(baseURL, password string) *DemoClient {
	return &DemoClient{
		baseURL:  baseURL,
		password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Status returns the daemon's session status. It doubles as a reachability check.
func (dc *DemoClient) Status() (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := dc.do(http.MethodGet, "/status", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (dc *DemoClient) StartSession() (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := dc.do(http.MethodPost, "/session/start", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (dc *DemoClient) StopSession() (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := dc.do(http.MethodPost, "/session/stop", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (dc *DemoClient) ListContent() ([]content.Entry, error) {
	var resp models.ContentListResponse
	if err := dc.do(http.MethodGet, "/content", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

func (dc *DemoClient) AddContent(req models.AddContentRequest) (*models.AddContentResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp models.AddContentResponse
	if err := dc.do(http.MethodPost, "/content", bytes.NewReader(jsonData), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveContent removes the entry at a 1-based position.
func (dc *DemoClient) RemoveContent(position int) (*models.RemoveContentResponse, error) {
	var resp models.RemoveContentResponse
	if err := dc.do(http.MethodDelete, fmt.Sprintf("/content/%d", position), nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (dc *DemoClient) ImportContent(r io.Reader) (*models.ImportResponse, error) {
	var resp models.ImportResponse
	if err := dc.do(http.MethodPost, "/content/import", r, "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportContent writes the playlist JSON to w.
func (dc *DemoClient) ExportContent(w io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, dc.baseURL+"/content/export", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Message: string(data)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

func (dc *DemoClient) UpdateSettings(update models.UpdateSettingsRequest) (*models.SettingsResponse, error) {
	jsonData, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp models.SettingsResponse
	if err := dc.do(http.MethodPut, "/settings", bytes.NewReader(jsonData), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (dc *DemoClient) do(method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequest(method, dc.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if dc.password != "" {
		req.Header.Set(models.MasterPasswordHeader, dc.password)
	}

	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
			return &StatusError{Code: resp.StatusCode, Message: errResp.Error}
		}
		return &StatusError{Code: resp.StatusCode, Message: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// StatusError is a non-200 reply from the daemon.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}
