package types

import "context"

// Position is a coordinate pair from the positioning source.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DefaultPosition returns the fixed fallback coordinate pair.
func DefaultPosition() Position {
	return Position{Latitude: DefaultLatitude, Longitude: DefaultLongitude}
}

// PositionSource queries positioning hardware or a positioning
// service for the current coordinates. Implementations must honor
// ctx cancellation; callers apply a bounded timeout and substitute
// DefaultPosition on any error.
type PositionSource interface {
	Current(ctx context.Context) (Position, error)
}

// ConnectivitySource is the platform reachability signal. Online
// reports the current state; Subscribe registers a callback invoked
// on each online/offline transition. The signal is advisory: network
// calls can still fail while Online reports true.
type ConnectivitySource interface {
	Online() bool
	Subscribe(func(online bool))
}

// Authority is the remote report-ingestion endpoint. Submit delivers
// an ordered batch atomically: a nil return means every report in the
// batch was accepted. The authority must accept duplicate submissions
// of the same report ID without creating duplicates; the sync engine
// re-transmits accepted reports after a crash between acceptance and
// the local synced mark.
type Authority interface {
	Submit(ctx context.Context, reports []IncidentReport) error
}
