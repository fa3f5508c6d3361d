package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// errRetryable marks failures worth another attempt: transport errors and 5xx.
var errRetryable = errors.New("retryable archive error")

// Client implements domain.RasterSource over the raster archive HTTP API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client. maxRetries bounds the extra attempts
// made after a transport error or 5xx response.
func NewClient(baseURL, token string, timeout time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		backoff:    initialBackoff,
		metrics:    metrics,
		logger:     logger,
	}
}

// Series fetches every observation of q.Band in [q.Start, q.End) covering
// q.Bounds.
func (c *Client) Series(ctx context.Context, q domain.Query) ([]domain.Observation, error) {
	params := url.Values{
		"variable": {q.Band},
		"start":    {q.Start.UTC().Format(time.RFC3339)},
		"end":      {q.End.UTC().Format(time.RFC3339)},
		"west":     {formatCoord(q.Bounds.West)},
		"north":    {formatCoord(q.Bounds.North)},
		"east":     {formatCoord(q.Bounds.East())},
		"south":    {formatCoord(q.Bounds.South())},
	}
	fullURL := c.baseURL + "/v1/series?" + params.Encode()

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		obs, err := c.doRequest(ctx, fullURL)
		if err == nil {
			if len(obs) == 0 {
				c.metrics.ArchiveRequests.WithLabelValues("empty").Inc()
			} else {
				c.metrics.ArchiveRequests.WithLabelValues("success").Inc()
			}
			return obs, nil
		}
		c.metrics.ArchiveRequests.WithLabelValues("error").Inc()
		if !errors.Is(err, errRetryable) || attempt >= c.maxRetries {
			return nil, err
		}
		c.logger.Warn("archive request failed, retrying",
			"variable", q.Band,
			"start", q.Start.Format(time.DateOnly),
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ArchiveAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("series request: %w: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("archive API error: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", errRetryable, err)
		}
		return nil, err
	}

	var seriesResp response
	if err := json.NewDecoder(resp.Body).Decode(&seriesResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.Observation, 0, len(seriesResp.Observations))
	for _, o := range seriesResp.Observations {
		r, err := o.raster()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Observation{Time: o.Time, Raster: r})
	}
	return out, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Archive API response types.

type response struct {
	Variable     string        `json:"variable"`
	Observations []observation `json:"observations"`
}

type observation struct {
	Time time.Time   `json:"time"`
	Grid domain.Grid `json:"grid"`
	Data []*float64  `json:"data"` // row-major, null for no data
}

func (o observation) raster() (*domain.Raster, error) {
	if len(o.Data) != o.Grid.Len() {
		return nil, fmt.Errorf("observation %s: %d values for %d pixels: %w",
			o.Time.Format(time.DateOnly), len(o.Data), o.Grid.Len(), domain.ErrShapeMismatch)
	}
	r := &domain.Raster{Grid: o.Grid, Data: make([]float64, len(o.Data))}
	for i, v := range o.Data {
		if v == nil {
			r.Data[i] = math.NaN()
			continue
		}
		r.Data[i] = *v
	}
	return r, nil
}
