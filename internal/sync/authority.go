package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// BatchRequest is the wire format of one authority submission. The
// authority must treat acceptance as idempotent per (device_id, report
// id): duplicate submissions of an already-accepted report succeed
// without creating duplicates.
type BatchRequest struct {
	BatchID  string                 `json:"batch_id"`
	DeviceID string                 `json:"device_id"`
	Reports  []types.IncidentReport `json:"reports"`
}

// HTTPAuthority submits report batches to the remote ingestion
// endpoint over HTTP.
type HTTPAuthority struct {
	url      string
	deviceID string
	client   *http.Client
}

// NewHTTPAuthority creates a client for the given endpoint. The device
// ID identifies this device in the authority's idempotency key; a new
// one is generated when empty.
func NewHTTPAuthority(url, deviceID string) *HTTPAuthority {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	return &HTTPAuthority{
		url:      url,
		deviceID: deviceID,
		client:   &http.Client{},
	}
}

// DeviceID returns the device identifier used in submissions.
func (a *HTTPAuthority) DeviceID() string { return a.deviceID }

// Submit posts the batch. The request is atomic: a nil return means
// the whole batch was accepted; any transport failure or non-2xx
// status is a NetworkError and nothing is considered delivered.
func (a *HTTPAuthority) Submit(ctx context.Context, reports []types.IncidentReport) error {
	body, err := json.Marshal(BatchRequest{
		BatchID:  uuid.NewString(),
		DeviceID: a.deviceID,
		Reports:  reports,
	})
	if err != nil {
		return &types.NetworkError{Op: "encode batch", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return &types.NetworkError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &types.NetworkError{Op: "submit batch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.NetworkError{
			Op:  "submit batch",
			Err: fmt.Errorf("authority returned status %d", resp.StatusCode),
		}
	}
	return nil
}
