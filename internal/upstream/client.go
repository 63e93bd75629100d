// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// LogFilter narrows a log listing to one task or stage.
type LogFilter struct {
	TaskID  string
	StageID string
}

// LogPage is one page of the upstream's log listing.
type LogPage struct {
	Records  []*protocol.LogRecord `json:"records"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int                   `json:"total"`
}

// Client fetches log records from the orchestrator's REST API. Fetch
// failures are returned to the caller; retry policy belongs to the transport
// consumer (the poller), not here.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

// NewClient creates a REST client against baseURL (e.g.
// "http://host:9090/api/v1"). pageSize <= 0 selects 200.
func NewClient(baseURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchLogs retrieves one page of log records matching the filter.
// Pages are 1-based.
func (c *Client) FetchLogs(ctx context.Context, filter LogFilter, page int) (*LogPage, error) {
	q := url.Values{}
	if filter.TaskID != "" {
		q.Set("task_id", filter.TaskID)
	}
	if filter.StageID != "" {
		q.Set("stage_id", filter.StageID)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))

	endpoint := c.baseURL + "/logs?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build log request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("log request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log request returned status %d", resp.StatusCode)
	}

	var pageResp LogPage
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("failed to decode log page: %w", err)
	}
	return &pageResp, nil
}

// FetchAllLogs walks every page of the listing and returns the combined
// records. Page walking stops on the first short page.
func (c *Client) FetchAllLogs(ctx context.Context, filter LogFilter) ([]*protocol.LogRecord, error) {
	var records []*protocol.LogRecord

	for page := 1; ; page++ {
		pageResp, err := c.FetchLogs(ctx, filter, page)
		if err != nil {
			return nil, err
		}
		records = append(records, pageResp.Records...)
		if len(pageResp.Records) < c.pageSize {
			return records, nil
		}
	}
}
