package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"gopro-bridge/internal/camera"
	"gopro-bridge/internal/infra/tracer"
)

// Session owns at most one camera handle plus the connected flag the
// protocol reports. The flag is a cache of the last observed transport
// state; only connect, disconnect, and check_connection refresh it, so
// it may lag the live link between those commands.
type Session struct {
	factory camera.Factory
	opts    camera.Options
	logger  *slog.Logger

	mu        sync.Mutex
	cam       camera.Camera
	connected bool
	linkID    string
}

// NewSession creates a disconnected session that opens cameras through
// the given factory.
func NewSession(factory camera.Factory, opts camera.Options, logger *slog.Logger) *Session {
	// The bridge drives the camera over BLE only; WiFi stays off.
	opts.EnableWiFi = false
	return &Session{factory: factory, opts: opts, logger: logger}
}

// Handle dispatches one decoded request and returns its response with
// the request's commandId attached.
func (s *Session) Handle(ctx context.Context, req Request) Response {
	s.logger.Info("command received", "command", req.Command)
	resp := s.route(ctx, req)
	resp.CommandID = req.CommandID
	s.logger.Info("command result", "command", req.Command, "success", resp.Success)
	return resp
}

func (s *Session) route(ctx context.Context, req Request) Response {
	cmd, ok := ParseCommand(req.Command)
	if !ok {
		s.logger.Warn("unknown command", "command", req.Command)
		return Response{Error: fmt.Sprintf("Unknown command: %s", req.Command)}
	}

	ctx, span := tracer.StartSpan(ctx, "bridge."+string(cmd),
		trace.WithAttributes(tracer.StringAttr("command.name", string(cmd))))
	defer span.End()

	// Deferred so a panicking handler cannot leave the lock held; the
	// shutdown path still needs to disconnect after the loop dies.
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp Response
	switch cmd {
	case CmdConnect:
		resp = s.connect(ctx)
	case CmdDisconnect:
		resp = s.disconnect(ctx)
	case CmdStatus:
		resp = s.getStatus(ctx)
	case CmdCheckConnection:
		resp = s.checkConnection(ctx)
	case CmdTakePhoto:
		resp = s.takePhoto(ctx)
	}

	if resp.Success {
		tracer.SetOK(span)
	} else {
		tracer.RecordError(span, errors.New(resp.Error))
	}
	return resp
}

// Disconnect closes the camera handle if one is open. The shutdown path
// calls it directly, outside the command loop.
func (s *Session) Disconnect(ctx context.Context) Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnect(ctx)
}

// Connected reports the cached connection flag.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) connect(ctx context.Context) Response {
	if s.cam != nil {
		// A connect always opens fresh; drop whatever handle is left
		// from the previous link.
		if err := s.cam.Close(ctx); err != nil {
			s.logger.Warn("closing previous camera handle", "error", err)
		}
		s.cam = nil
		s.connected = false
	}

	s.cam = s.factory(s.opts)
	if err := s.cam.Open(ctx); err != nil {
		s.logger.Error("camera open failed", "error", err)
		return Response{Error: err.Error(), Connected: boolPtr(false)}
	}

	up, err := s.cam.BLEConnected(ctx)
	if err != nil {
		s.logger.Error("ble state query failed", "error", err)
		return Response{Error: err.Error(), Connected: boolPtr(false)}
	}
	if !up {
		s.logger.Error("camera opened but ble link is down")
		return Response{Error: errBLEFailed, Connected: boolPtr(false)}
	}

	s.connected = true
	s.linkID = newLinkID()
	s.logger.Info("camera connected", "link_id", s.linkID, "target", s.opts.Target)
	return Response{
		Success:      true,
		Message:      msgConnected,
		Connected:    boolPtr(true),
		BLEConnected: boolPtr(true),
	}
}

func (s *Session) disconnect(ctx context.Context) Response {
	// The flag drops no matter how teardown goes.
	s.connected = false

	if s.cam == nil {
		return Response{Success: true, Message: msgDisconnected, Connected: boolPtr(false)}
	}

	if err := s.cam.Close(ctx); err != nil {
		// Keep the handle; the camera may still be reachable and a
		// later check_connection can tell.
		s.logger.Error("camera close failed", "error", err)
		return Response{Error: err.Error(), Connected: boolPtr(false)}
	}

	s.cam = nil
	s.logger.Info("camera disconnected", "link_id", s.linkID)
	return Response{Success: true, Message: msgDisconnected, Connected: boolPtr(false)}
}

func (s *Session) getStatus(ctx context.Context) Response {
	if s.cam == nil || !s.connected {
		return Response{Error: errNotConnected}
	}

	st, err := s.cam.Status(ctx)
	if err != nil {
		s.logger.Error("status query failed", "error", err)
		return Response{Error: err.Error()}
	}

	return Response{
		Success: true,
		Status: &StatusPayload{
			Busy:     boolLabel(st.Busy),
			Encoding: boolLabel(st.Encoding),
			Ready:    boolLabel(st.Ready),
			Group:    statusGroup,
		},
	}
}

func (s *Session) checkConnection(ctx context.Context) Response {
	if s.cam == nil {
		return Response{
			Success:      true,
			Message:      msgNoCamera,
			Connected:    boolPtr(false),
			BLEConnected: boolPtr(false),
		}
	}

	up, err := s.cam.BLEConnected(ctx)
	if err != nil {
		s.connected = false
		s.logger.Error("ble state query failed", "error", err)
		return Response{
			Error:        err.Error(),
			Connected:    boolPtr(false),
			BLEConnected: boolPtr(false),
		}
	}

	// Re-sync the cached flag with the observed link state, both ways:
	// a dropped link marks us disconnected, and a handle that survived
	// a failed teardown marks us connected again.
	s.connected = up

	msg := msgLinkDown
	if up {
		msg = msgLinkUp
	}
	s.logger.Info("connection check", "ble_connected", up)
	return Response{
		Success:      true,
		Message:      msg,
		Connected:    boolPtr(up),
		BLEConnected: boolPtr(up),
	}
}

func (s *Session) takePhoto(ctx context.Context) Response {
	if s.cam == nil || !s.connected {
		return Response{Error: errNotConnected}
	}

	res, err := s.cam.SetShutter(ctx, true)
	if err != nil {
		s.logger.Error("shutter trigger failed", "error", err)
		return Response{Error: err.Error()}
	}
	if !res.OK() {
		s.logger.Warn("shutter rejected", "status", res.Status)
		return Response{Error: "Photo failed: " + res.Status}
	}

	s.logger.Info("photo taken", "link_id", s.linkID)
	return Response{Success: true, Message: msgPhotoTaken}
}

// newLinkID mints a ULID naming one connect-to-disconnect lifetime of
// a camera link, for log correlation.
func newLinkID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
