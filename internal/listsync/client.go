package listsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrConflict is returned when the server rejects a request because its
// preconditions no longer hold. The caller resynchronizes; it never retries.
var ErrConflict = errors.New("conflict")

// HTTPError covers every other non-success response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// MutationResult is the server's acknowledgement of one mutation: the data
// version the mutation produced, plus the assigned id and position for the
// creating endpoints.
type MutationResult struct {
	DataVersion int64 `json:"data_version"`
	ID          int64 `json:"id"`
	Position    int64 `json:"position"`
}

// RemoteClient is the engine's view of the server. The real implementation
// talks HTTP; tests substitute a scripted one.
type RemoteClient interface {
	// FetchAll retrieves the full snapshot. When ifVersion is still current
	// it returns (nil, true, nil) and no state is transferred.
	FetchAll(ctx context.Context, ifVersion int64) (*Snapshot, bool, error)

	// Mutate posts one mutation body to the named endpoint.
	Mutate(ctx context.Context, endpoint string, body any) (MutationResult, error)
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	entropy io.Reader
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// requestID tags each request so client and server logs can be joined.
func (c *HTTPClient) requestID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
}

func (c *HTTPClient) FetchAll(ctx context.Context, ifVersion int64) (*Snapshot, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/items", nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("X-Request-ID", c.requestID())
	if ifVersion >= 0 {
		req.Header.Set("If-None-Match", strconv.Quote(strconv.FormatInt(ifVersion, 10)))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, true, nil
	case http.StatusOK:
		var snap Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return nil, false, fmt.Errorf("decoding snapshot: %w", err)
		}
		return &snap, false, nil
	default:
		return nil, false, responseError(resp)
	}
}

func (c *HTTPClient) Mutate(ctx context.Context, endpoint string, body any) (MutationResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return MutationResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return MutationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", c.requestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return MutationResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var result MutationResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return MutationResult{}, fmt.Errorf("decoding %s response: %w", endpoint, err)
		}
		return result, nil
	case http.StatusConflict:
		return MutationResult{}, ErrConflict
	default:
		return MutationResult{}, responseError(resp)
	}
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}
