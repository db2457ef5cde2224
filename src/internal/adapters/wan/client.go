package wan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls a WAN 2.1 style video-generation service: submit a prompt,
// poll the task until it settles, download the result.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	pollWait time.Duration
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		pollWait: 5 * time.Second,
	}
}

type generationRequest struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	DurationSeconds int    `json:"duration_seconds"`
}

type generationTask struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // pending, running, succeeded, failed
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, plan string) (io.ReadCloser, error) {
	task, err := c.submit(ctx, plan)
	if err != nil {
		return nil, err
	}

	for task.Status != "succeeded" {
		if task.Status == "failed" {
			return nil, fmt.Errorf("generation task %s failed: %s", task.ID, task.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollWait):
		}
		task, err = c.poll(ctx, task.ID)
		if err != nil {
			return nil, err
		}
	}

	return c.download(ctx, task.VideoURL)
}

func (c *Client) submit(ctx context.Context, plan string) (*generationTask, error) {
	body, err := json.Marshal(generationRequest{
		Prompt:          plan,
		AspectRatio:     "9:16",
		DurationSeconds: 60,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation service returned %d: %s", resp.StatusCode, string(raw))
	}

	var task generationTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) poll(ctx context.Context, taskID string) (*generationTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/generations/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation service returned %d", resp.StatusCode)
	}

	var task generationTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("video download returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}
