package position

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// HTTPSource queries a positioning endpoint returning a JSON body of
// the form {"latitude": ..., "longitude": ...}. Suitable for gpsd
// bridges or companion apps exposing a local fix.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for the given endpoint.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{}}
}

// Current fetches the fix. Any transport failure, non-200 status, or
// malformed body is reported as ErrPositionUnavailable.
func (s *HTTPSource) Current(ctx context.Context) (types.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return types.Position{}, fmt.Errorf("%w: %v", types.ErrPositionUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.Position{}, fmt.Errorf("%w: %v", types.ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Position{}, fmt.Errorf("%w: status %d", types.ErrPositionUnavailable, resp.StatusCode)
	}

	var pos types.Position
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return types.Position{}, fmt.Errorf("%w: %v", types.ErrPositionUnavailable, err)
	}
	return pos, nil
}
