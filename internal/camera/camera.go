package camera

import (
	"context"
	"fmt"
)

// Sentinel errors for camera backends.
var (
	ErrNotConnected   = fmt.Errorf("not connected")
	ErrUnknownBackend = fmt.Errorf("unknown camera backend")
)

// StatusSuccess is the shutter status code a camera reports on success.
// An absent status is also success; the non-success codes are
// firmware-defined and not enumerated here.
const StatusSuccess = "SUCCESS"

// Options holds connection parameters passed to a backend factory.
type Options struct {
	// EnableWiFi brings up the camera's WiFi access point alongside the
	// BLE link. The bridge never sets this.
	EnableWiFi bool
	// Target pins the backend to a specific camera (serial suffix or
	// address). Empty means first camera discovered.
	Target string
}

// Status is a snapshot of the camera's readiness flags.
type Status struct {
	Busy     bool
	Encoding bool
	Ready    bool
}

// ShutterResult is the camera's reply to a shutter trigger.
type ShutterResult struct {
	Status string
}

// OK reports whether the camera accepted the shutter command. A camera
// either answers with StatusSuccess or sends no status at all.
func (r ShutterResult) OK() bool {
	return r.Status == "" || r.Status == StatusSuccess
}

// Camera abstracts one GoPro session over BLE. Implementations are not
// safe for concurrent use; callers serialize access.
type Camera interface {
	// Open establishes the BLE link and runs the pairing handshake.
	Open(ctx context.Context) error
	// Close tears down the BLE link and releases the session.
	Close(ctx context.Context) error
	// BLEConnected reports the live state of the BLE link.
	BLEConnected(ctx context.Context) (bool, error)
	// Status queries the camera's busy/encoding/ready flags.
	// Returns ErrNotConnected when the session is not open.
	Status(ctx context.Context) (Status, error)
	// SetShutter presses (on) or releases (off) the shutter.
	SetShutter(ctx context.Context, on bool) (ShutterResult, error)
}

// Factory creates an unopened Camera from connection options.
type Factory func(opts Options) Camera
