package bridge

import "encoding/json"

// Command is one of the fixed protocol verbs.
type Command string

const (
	CmdConnect         Command = "connect"
	CmdDisconnect      Command = "disconnect"
	CmdStatus          Command = "status"
	CmdCheckConnection Command = "check_connection"
	CmdTakePhoto       Command = "take_photo"
)

// ParseCommand maps a raw command string onto the verb set.
func ParseCommand(s string) (Command, bool) {
	switch Command(s) {
	case CmdConnect, CmdDisconnect, CmdStatus, CmdCheckConnection, CmdTakePhoto:
		return Command(s), true
	}
	return "", false
}

// Wire strings fixed by the parent process contract.
const (
	msgConnected    = "Connected to GoPro via BLE"
	msgDisconnected = "Disconnected from GoPro"
	msgPhotoTaken   = "Photo taken successfully via BLE"
	msgLinkUp       = "Connected"
	msgLinkDown     = "Disconnected"
	msgNoCamera     = "No GoPro instance"

	errNotConnected = "Not connected"
	errBLEFailed    = "BLE connection failed"
)

// statusGroup is a constant marker in the status payload, not a live
// camera value.
const statusGroup = 1

// Request is one decoded command line. CommandID stays raw so any JSON
// value the parent sent is echoed back byte for byte.
type Request struct {
	Command   string          `json:"command"`
	CommandID json.RawMessage `json:"commandId,omitempty"`
}

// DecodeRequest parses one input line into a Request. An explicit JSON
// null commandId counts as absent and is not echoed.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, err
	}
	if string(req.CommandID) == "null" {
		req.CommandID = nil
	}
	return req, nil
}

// Response is one result line. Connected and BLEConnected are pointers
// so an explicit false still serializes while untouched fields stay
// absent.
type Response struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
	Connected    *bool           `json:"connected,omitempty"`
	BLEConnected *bool           `json:"ble_connected,omitempty"`
	Status       *StatusPayload  `json:"status,omitempty"`
	CommandID    json.RawMessage `json:"commandId,omitempty"`
}

// StatusPayload is the status block shape the parent expects:
// capitalized boolean words plus the constant group marker.
type StatusPayload struct {
	Busy     string `json:"busy"`
	Encoding string `json:"encoding"`
	Ready    string `json:"ready"`
	Group    int    `json:"group"`
}

func boolLabel(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func boolPtr(b bool) *bool { return &b }
