// Package remote talks to the hosted raster-algebra service over HTTP. The
// expression graph is shipped as JSON and only the scalar extraction points
// (size, reduce, tiles) cross the wire.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/observability"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Operation names, used as metric labels and in ExternalServiceError.Op.
const (
	OpSize   = "size"
	OpReduce = "reduce"
	OpTiles  = "tiles"
	OpPing   = "ping"
)

const maxErrorBody = 4 << 10

// Client implements raster.Backend and raster.Pinger against the hosted
// engine.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a raster service client. timeout bounds every request.
func NewClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

type sizeRequest struct {
	Collection *raster.Node `json:"collection"`
}

type sizeResponse struct {
	Size *int `json:"size"`
}

type reduceRequest struct {
	Image *raster.Node `json:"image"`
	raster.ReduceRequest
}

type reduceResponse struct {
	// Undefined statistics come back as null.
	Stats map[string]*float64 `json:"stats"`
}

type tilesRequest struct {
	Image         *raster.Node         `json:"image"`
	Visualization raster.Visualization `json:"visualization"`
}

type tilesResponse struct {
	URLTemplate string `json:"url_template"`
}

// Size implements raster.Backend.
func (c *Client) Size(ctx context.Context, coll raster.Collection) (int, error) {
	var resp sizeResponse
	if err := c.doRequest(ctx, OpSize, http.MethodPost, "/v1/size", sizeRequest{Collection: coll.Node()}, &resp); err != nil {
		return 0, err
	}
	if resp.Size == nil {
		return 0, &domain.ExternalServiceError{Op: OpSize, Err: errors.New("response has no size")}
	}
	return *resp.Size, nil
}

// ReduceRegion implements raster.Backend.
func (c *Client) ReduceRegion(ctx context.Context, img raster.Image, req raster.ReduceRequest) (raster.Stats, error) {
	var resp reduceResponse
	if err := c.doRequest(ctx, OpReduce, http.MethodPost, "/v1/reduce", reduceRequest{Image: img.Node(), ReduceRequest: req}, &resp); err != nil {
		return nil, err
	}
	stats := raster.Stats{}
	for name, v := range resp.Stats {
		if v != nil {
			stats[name] = *v
		}
	}
	return stats, nil
}

// TileURL implements raster.Backend.
func (c *Client) TileURL(ctx context.Context, img raster.Image, viz raster.Visualization) (string, error) {
	var resp tilesResponse
	if err := c.doRequest(ctx, OpTiles, http.MethodPost, "/v1/tiles", tilesRequest{Image: img.Node(), Visualization: viz}, &resp); err != nil {
		return "", err
	}
	if resp.URLTemplate == "" {
		return "", &domain.ExternalServiceError{Op: OpTiles, Err: errors.New("could not extract tile URL: response has no url_template")}
	}
	return resp.URLTemplate, nil
}

// Ping implements raster.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, OpPing, http.MethodGet, "/healthz", nil, nil)
}

// doRequest sends body as JSON and decodes the response into out. Transport,
// status and decode failures become ExternalServiceError; cancellation of
// ctx is returned as is.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.BackendRequests.WithLabelValues(op, outcome).Inc()
		c.metrics.BackendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s request: %w", op, ctxErr)
		}
		return &domain.ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("raster service error", "op", op, "status", resp.StatusCode)
		return &domain.ExternalServiceError{
			Op:  op,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ExternalServiceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
