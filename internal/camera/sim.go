package camera

import (
	"context"
	"sync"
)

// Simulator is an in-process Camera used when no hardware is attached.
// With all knobs at their zero values it behaves as a healthy camera:
// Open brings the link up, Status reports ready, and every shutter
// trigger is accepted with no status code.
type Simulator struct {
	// Fault knobs. Set before handing the Simulator out; each scripted
	// error is returned by the matching operation.
	OpenErr    error
	CloseErr   error
	QueryErr   error // returned by BLEConnected and Status
	ShutterErr error

	// ShutterStatus is the status code SetShutter replies with.
	// Empty means the camera sends no status.
	ShutterStatus string

	// Busy and Encoding feed the Status snapshot.
	Busy     bool
	Encoding bool

	// DropAfterOpen makes Open succeed while leaving the link down,
	// as a camera that pairs but drops before the ready handshake.
	DropAfterOpen bool

	mu       sync.Mutex
	opts     Options
	open     bool
	linkUp   bool
	opens    int
	closes   int
	shutters []bool
}

// NewSimulator creates a Simulator holding the given options.
func NewSimulator(opts Options) *Simulator {
	return &Simulator{opts: opts}
}

func (s *Simulator) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.open = true
	s.linkUp = !s.DropAfterOpen
	return nil
}

func (s *Simulator) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.CloseErr != nil {
		return s.CloseErr
	}
	s.open = false
	s.linkUp = false
	return nil
}

func (s *Simulator) BLEConnected(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return false, s.QueryErr
	}
	return s.linkUp, nil
}

func (s *Simulator) Status(_ context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return Status{}, s.QueryErr
	}
	if !s.open {
		return Status{}, ErrNotConnected
	}
	return Status{
		Busy:     s.Busy,
		Encoding: s.Encoding,
		Ready:    !s.Busy && !s.Encoding,
	}, nil
}

func (s *Simulator) SetShutter(_ context.Context, on bool) (ShutterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ShutterErr != nil {
		return ShutterResult{}, s.ShutterErr
	}
	if !s.open {
		return ShutterResult{}, ErrNotConnected
	}
	s.shutters = append(s.shutters, on)
	return ShutterResult{Status: s.ShutterStatus}, nil
}

// DropLink simulates the BLE link going down out from under an open
// session, e.g. the camera powering off or walking out of range.
func (s *Simulator) DropLink() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkUp = false
}

// Opened reports whether the session is currently open.
func (s *Simulator) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// LinkUp reports whether the BLE link is currently up.
func (s *Simulator) LinkUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkUp
}

// Opens returns how many times Open has been called.
func (s *Simulator) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closes returns how many times Close has been called.
func (s *Simulator) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Shutters returns the recorded shutter triggers in call order.
func (s *Simulator) Shutters() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool{}, s.shutters...)
}
