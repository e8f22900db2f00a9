// Package rest talks to the reputation backend. Scores are owned by the
// backend; this client never computes one.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type Client struct {
	base   string
	token  string
	client *http.Client
}

func NewClient(base, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Rate(ctx context.Context, userID domain.UserID, req core.RatingRequest) (core.RatingResult, error) {
	var res core.RatingResult
	err := c.post(ctx, fmt.Sprintf("%s/rate/%s", c.base, userID), req, &res)
	return res, err
}

func (c *Client) Award(ctx context.Context, userID domain.UserID, req core.RatingRequest) (core.RatingResult, error) {
	var res core.RatingResult
	err := c.post(ctx, fmt.Sprintf("%s/award/%s", c.base, userID), req, &res)
	return res, err
}

func (c *Client) BulkFetch(ctx context.Context, userIDs []domain.UserID) (map[domain.UserID]domain.ReputationSnapshot, error) {
	body := struct {
		UserIDs []domain.UserID `json:"userIds"`
	}{UserIDs: userIDs}

	var res map[domain.UserID]domain.ReputationSnapshot
	if err := c.post(ctx, c.base+"/bulk", body, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("module", "rest").Str("url", url).Int("status", resp.StatusCode).Msg("backend status")
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
