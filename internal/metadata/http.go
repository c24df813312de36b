package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// httpQuerier is the shared transport for HTTP-backed metadata sources:
// one client with a bounded timeout and an optional request rate limiter.
type httpQuerier struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPQuerier(timeout time.Duration, ratePerSec float64) httpQuerier {
	q := httpQuerier{
		client: &http.Client{Timeout: timeout},
	}
	if ratePerSec > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return q
}

// get performs a rate-limited GET. A non-nil error means the request never
// produced an HTTP response (timeout, connection failure, canceled context)
// and must be classified as a service error by the caller.
func (q httpQuerier) get(ctx context.Context, urlStr string) (int, []byte, error) {
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// classifyStatus maps a non-2xx HTTP status to a query result per the
// shared source contract: 404 is a definitive miss, 429 and 5xx are
// temporary, anything else unexpected is treated as a miss.
func classifyStatus(statusCode int) (QueryResult, bool) {
	switch {
	case statusCode == http.StatusNotFound:
		return NotFound(), true
	case statusCode == http.StatusTooManyRequests:
		return ServiceError("Rate limited (429)"), true
	case statusCode >= 500:
		return ServiceError(fmt.Sprintf("Server error (%d)", statusCode)), true
	case statusCode >= 200 && statusCode < 300:
		return QueryResult{}, false
	default:
		return NotFound(), true
	}
}

// resultFor wraps a parsed record as success or partial depending on
// completeness; a nil record means the payload carried nothing usable.
func resultFor(aircraft *AircraftRecord, raw []byte) QueryResult {
	if aircraft == nil {
		return NotFound()
	}
	if aircraft.IsComplete() {
		return Success(aircraft, raw)
	}
	return Partial(aircraft, raw)
}
