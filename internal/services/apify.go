package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultApifyBaseURL = "https://api.apify.com"

// Actor run states we care about. Anything else is treated as still running.
const (
	apifyStatusSucceeded = "SUCCEEDED"
	apifyStatusFailed    = "FAILED"
	apifyStatusAborted   = "ABORTED"
	apifyStatusTimedOut  = "TIMED-OUT"
)

// ApifyClient drives the transcript scraper actor: submit a run, poll it to a
// terminal state, read the default dataset.
type ApifyClient struct {
	token        string
	actorID      string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
}

func NewApifyClient(token, actorID string, pollInterval time.Duration, maxPolls int) *ApifyClient {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 60
	}
	return &ApifyClient{
		token:        token,
		actorID:      actorID,
		baseURL:      defaultApifyBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

type apifyRunEnvelope struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// SubmitRun starts an actor run for the given video URL and returns the run id.
func (c *ApifyClient) SubmitRun(ctx context.Context, videoURL string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"startUrls": []string{videoURL},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal run input: %w", err)
	}

	url := fmt.Sprintf("%s/v2/acts/%s/runs", c.baseURL, c.actorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("apify run submit failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &UpstreamError{Message: fmt.Sprintf("apify run submit returned status %d: %s", resp.StatusCode, body)}
	}

	var run apifyRunEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("failed to decode apify run response: %v", err)}
	}
	if run.Data.ID == "" {
		return "", &UpstreamError{Message: "apify run response missing run id"}
	}
	return run.Data.ID, nil
}

func (c *ApifyClient) runStatus(ctx context.Context, runID string) (string, error) {
	url := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", c.baseURL, runID, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("apify run status failed: %v", err)}
	}
	defer resp.Body.Close()

	var run apifyRunEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("failed to decode apify status response: %v", err)}
	}
	return run.Data.Status, nil
}

// DatasetItems reads the run's default dataset.
func (c *ApifyClient) DatasetItems(ctx context.Context, runID string) ([]map[string]json.RawMessage, error) {
	url := fmt.Sprintf("%s/v2/actor-runs/%s/dataset/items?token=%s", c.baseURL, runID, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("apify dataset fetch failed: %v", err)}
	}
	defer resp.Body.Close()

	var items []map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to decode apify dataset: %v", err)}
	}
	return items, nil
}

// FetchTranscript submits a run for the video and polls until it reaches a
// terminal state or the poll budget runs out. A run that succeeds but yields
// no transcript returns empty without error.
func (c *ApifyClient) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	runID, err := c.SubmitRun(ctx, "https://www.youtube.com/watch?v="+videoID)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		status, err := c.runStatus(ctx, runID)
		if err != nil {
			return "", err
		}

		switch status {
		case apifyStatusSucceeded:
			items, err := c.DatasetItems(ctx, runID)
			if err != nil {
				return "", err
			}
			if len(items) == 0 {
				return "", nil
			}
			var transcript string
			if raw, ok := items[0]["transcript"]; ok {
				if err := json.Unmarshal(raw, &transcript); err != nil {
					return "", &UpstreamError{Message: "apify dataset transcript field is not a string"}
				}
			}
			return transcript, nil
		case apifyStatusFailed, apifyStatusAborted, apifyStatusTimedOut:
			return "", &UpstreamError{Message: fmt.Sprintf("apify run %s ended with status %s", runID, status)}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	return "", &UpstreamError{Message: fmt.Sprintf("apify run %s did not finish within the poll budget", runID)}
}
