package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopro-bridge/internal/camera"
)

// runLoop feeds input through a fresh loop and returns the emitted
// response lines. Fatal on any loop error.
func runLoop(t *testing.T, cam camera.Camera, input string) []string {
	t.Helper()
	var out bytes.Buffer
	loop := NewLoop(strings.NewReader(input), &out, newTestSession(cam), newTestLogger())
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	raw := strings.TrimRight(out.String(), "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("response line %q is not JSON: %v", line, err)
	}
	return m
}

func TestLoopConnectThenStatus(t *testing.T) {
	input := `{"command":"connect","commandId":1}` + "\n" +
		`{"command":"status","commandId":2}` + "\n"
	lines := runLoop(t, healthyCamera(), input)
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %v", len(lines), lines)
	}

	want0 := `{"success":true,"message":"Connected to GoPro via BLE","connected":true,"ble_connected":true,"commandId":1}`
	if lines[0] != want0 {
		t.Errorf("line 0 = %s\nwant     %s", lines[0], want0)
	}
	want1 := `{"success":true,"status":{"busy":"False","encoding":"False","ready":"True","group":1},"commandId":2}`
	if lines[1] != want1 {
		t.Errorf("line 1 = %s\nwant     %s", lines[1], want1)
	}
}

func TestLoopStatusWhileDisconnected(t *testing.T) {
	lines := runLoop(t, healthyCamera(), `{"command":"status","commandId":3}`+"\n")
	if len(lines) != 1 {
		t.Fatalf("got %d response lines, want 1", len(lines))
	}
	want := `{"success":false,"error":"Not connected","commandId":3}`
	if lines[0] != want {
		t.Errorf("line = %s, want %s", lines[0], want)
	}
}

func TestLoopMalformedLineDoesNotStopLoop(t *testing.T) {
	input := "not-json\n" + `{"command":"check_connection"}` + "\n"
	lines := runLoop(t, healthyCamera(), input)
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %v", len(lines), lines)
	}

	m := decodeLine(t, lines[0])
	if m["success"] != false {
		t.Errorf("success = %v, want false", m["success"])
	}
	errStr, _ := m["error"].(string)
	if !strings.HasPrefix(errStr, "Invalid JSON: ") {
		t.Errorf("error = %q, want Invalid JSON prefix", errStr)
	}
	if _, ok := m["commandId"]; ok {
		t.Error("parse failures must not carry a commandId")
	}

	if m := decodeLine(t, lines[1]); m["success"] != true {
		t.Errorf("second command should still be processed, got %v", lines[1])
	}
}

func TestLoopBlankLine(t *testing.T) {
	lines := runLoop(t, healthyCamera(), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d response lines, want 1", len(lines))
	}
	m := decodeLine(t, lines[0])
	errStr, _ := m["error"].(string)
	if !strings.HasPrefix(errStr, "Invalid JSON: ") {
		t.Errorf("error = %q, want Invalid JSON prefix", errStr)
	}
}

func TestLoopNonObjectLine(t *testing.T) {
	for _, input := range []string{"42\n", `"connect"` + "\n", "[1,2]\n"} {
		lines := runLoop(t, healthyCamera(), input)
		if len(lines) != 1 {
			t.Fatalf("input %q: got %d response lines, want 1", input, len(lines))
		}
		m := decodeLine(t, lines[0])
		errStr, _ := m["error"].(string)
		if !strings.HasPrefix(errStr, "Invalid JSON: ") {
			t.Errorf("input %q: error = %q, want Invalid JSON prefix", input, errStr)
		}
	}
}

func TestLoopUnknownCommand(t *testing.T) {
	lines := runLoop(t, healthyCamera(), `{"command":"reboot","commandId":"x"}`+"\n")
	want := `{"success":false,"error":"Unknown command: reboot","commandId":"x"}`
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("lines = %v, want [%s]", lines, want)
	}
}

func TestLoopCleanEOFLeavesSessionAlone(t *testing.T) {
	cam := healthyCamera()
	lines := runLoop(t, cam, `{"command":"connect"}`+"\n")
	if len(lines) != 1 {
		t.Fatalf("got %d response lines, want 1", len(lines))
	}

	// End of input is the parent's orderly shutdown; the loop must not
	// second-guess it with its own disconnect.
	if cam.closes != 0 {
		t.Errorf("closes = %d, want 0 after clean EOF", cam.closes)
	}
}

func TestLoopFinalLineWithoutNewline(t *testing.T) {
	lines := runLoop(t, healthyCamera(), `{"command":"check_connection"}`)
	if len(lines) != 1 {
		t.Fatalf("got %d response lines, want 1", len(lines))
	}
	if m := decodeLine(t, lines[0]); m["success"] != true {
		t.Errorf("response = %v", lines[0])
	}
}

func TestLoopEmptyInput(t *testing.T) {
	lines := runLoop(t, healthyCamera(), "")
	if len(lines) != 0 {
		t.Errorf("got %d response lines, want 0", len(lines))
	}
}

func TestLoopStrictAlternation(t *testing.T) {
	input := `{"command":"connect","commandId":1}` + "\n" +
		`{"command":"take_photo","commandId":2}` + "\n" +
		`{"command":"disconnect","commandId":3}` + "\n"
	lines := runLoop(t, healthyCamera(), input)
	if len(lines) != 3 {
		t.Fatalf("got %d response lines, want 3", len(lines))
	}
	for i, line := range lines {
		m := decodeLine(t, line)
		if id, ok := m["commandId"].(float64); !ok || int(id) != i+1 {
			t.Errorf("line %d carries commandId %v, want %d", i, m["commandId"], i+1)
		}
	}
}

func TestLoopContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	loop := NewLoop(strings.NewReader(`{"command":"status"}`+"\n"), &out, newTestSession(healthyCamera()), newTestLogger())
	err := loop.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if out.Len() != 0 {
		t.Errorf("canceled loop wrote output: %s", out.String())
	}
}

// panicCamera blows up on Open, standing in for a backend bug.
type panicCamera struct {
	mockCamera
}

func (p *panicCamera) Open(context.Context) error {
	panic("backend bug")
}

func TestLoopRecoversHandlerPanic(t *testing.T) {
	var out bytes.Buffer
	loop := NewLoop(strings.NewReader(`{"command":"connect"}`+"\n"), &out, newTestSession(&panicCamera{}), newTestLogger())

	err := loop.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "command loop panic") {
		t.Errorf("Run = %v, want recovered panic error", err)
	}
}

// failWriter rejects every write, as a closed response pipe would.
type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, fmt.Errorf("pipe closed")
}

func TestLoopWriteFailureIsFatal(t *testing.T) {
	loop := NewLoop(strings.NewReader(`{"command":"check_connection"}`+"\n"), failWriter{}, newTestSession(healthyCamera()), newTestLogger())

	err := loop.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "write response") {
		t.Errorf("Run = %v, want write response error", err)
	}
}
