// Tests for the HTTP authority client.
package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

func TestHTTPAuthority_SubmitsBatchEnvelope(t *testing.T) {
	var got BatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	a := NewHTTPAuthority(srv.URL, "device-7")
	reports := []types.IncidentReport{
		{ID: 1, IncidentType: types.IncidentFlood, Severity: 1, Timestamp: 1700000000000},
		{ID: 2, IncidentType: types.IncidentRoadBlock, Severity: 3, Timestamp: 1700000001000},
	}
	require.NoError(t, a.Submit(context.Background(), reports))

	assert.Equal(t, "device-7", got.DeviceID)
	_, err := uuid.Parse(got.BatchID)
	assert.NoError(t, err, "batch id must be a UUID")
	require.Len(t, got.Reports, 2)
	assert.EqualValues(t, 1, got.Reports[0].ID)
	assert.EqualValues(t, 2, got.Reports[1].ID)
}

func TestHTTPAuthority_NonSuccessStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPAuthority(srv.URL, "")
	err := a.Submit(context.Background(), []types.IncidentReport{{ID: 1}})
	require.Error(t, err)
	assert.True(t, types.IsNetwork(err))
}

func TestHTTPAuthority_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable

	a := NewHTTPAuthority(srv.URL, "")
	err := a.Submit(context.Background(), []types.IncidentReport{{ID: 1}})
	require.Error(t, err)
	assert.True(t, types.IsNetwork(err))
}

func TestHTTPAuthority_GeneratesDeviceID(t *testing.T) {
	a := NewHTTPAuthority("http://example.invalid", "")
	_, err := uuid.Parse(a.DeviceID())
	assert.NoError(t, err)
}
