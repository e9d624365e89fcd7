// Package event defines the notifications exchanged between the capture
// controller, the capture session and the front ends.
package event

import (
	"fmt"
	"time"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "capture.state", "device.message")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeMessage         = "device.message"
	TypeCaptureState    = "capture.state"
	TypeCaptureProgress = "capture.progress"
	TypeCaptureError    = "capture.error"
)

// -----------------------------------------------------------------------------
// Message codes
// -----------------------------------------------------------------------------

// Code identifies a notification broadcast by the capture session or the
// controller. Values are stable and match the numbering used by device
// front ends.
type Code int

// Message codes.
const (
	MsgDeviceListUpdate Code = 4500

	MsgCollectStartPrev Code = 5001
	MsgCollectStart     Code = 5002
	MsgCollectEndPrev   Code = 5003
	MsgCollectEnd       Code = 5004

	MsgBeginDeviceOptions   Code = 6001
	MsgEndDeviceOptions     Code = 6002
	MsgDeviceOptionsUpdated Code = 6003
	MsgDeviceDurationUpdate Code = 6004
	MsgDeviceModeChanged    Code = 6005
)

var codeNames = map[Code]string{
	MsgDeviceListUpdate:     "device-list-update",
	MsgCollectStartPrev:     "collect-start-prev",
	MsgCollectStart:         "collect-start",
	MsgCollectEndPrev:       "collect-end-prev",
	MsgCollectEnd:           "collect-end",
	MsgBeginDeviceOptions:   "begin-device-options",
	MsgEndDeviceOptions:     "end-device-options",
	MsgDeviceOptionsUpdated: "device-options-updated",
	MsgDeviceDurationUpdate: "device-duration-updated",
	MsgDeviceModeChanged:    "device-mode-changed",
}

// String returns a readable name for the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// MessageEvent carries a single message code.
type MessageEvent struct {
	baseEvent
	Code Code
}

// NewMessageEvent creates a MessageEvent.
func NewMessageEvent(code Code) MessageEvent {
	return MessageEvent{
		baseEvent: newBaseEvent(TypeMessage),
		Code:      code,
	}
}

// -----------------------------------------------------------------------------
// Capture Events
// -----------------------------------------------------------------------------

// CaptureStatus is the coarse status reported with a CaptureStateEvent.
type CaptureStatus int

const (
	CaptureStopped CaptureStatus = iota
	CaptureRunning
	CaptureAwaitingUpload
)

func (s CaptureStatus) String() string {
	switch s {
	case CaptureStopped:
		return "stopped"
	case CaptureRunning:
		return "running"
	case CaptureAwaitingUpload:
		return "awaiting-upload"
	default:
		return "unknown"
	}
}

// CaptureStateEvent is emitted when the controller changes sampling state.
type CaptureStateEvent struct {
	baseEvent
	Status CaptureStatus
	RunID  string // empty when no capture run is associated
}

// NewCaptureStateEvent creates a CaptureStateEvent.
func NewCaptureStateEvent(status CaptureStatus, runID string) CaptureStateEvent {
	return CaptureStateEvent{
		baseEvent: newBaseEvent(TypeCaptureState),
		Status:    status,
		RunID:     runID,
	}
}

// CaptureProgressEvent reports how many samples a running capture has
// collected so far.
type CaptureProgressEvent struct {
	baseEvent
	RunID   string
	Samples uint64
	Total   uint64
}

// NewCaptureProgressEvent creates a CaptureProgressEvent.
func NewCaptureProgressEvent(runID string, samples, total uint64) CaptureProgressEvent {
	return CaptureProgressEvent{
		baseEvent: newBaseEvent(TypeCaptureProgress),
		RunID:     runID,
		Samples:   samples,
		Total:     total,
	}
}

// Fraction returns the completed share in [0, 1].
func (e CaptureProgressEvent) Fraction() float64 {
	if e.Total == 0 {
		return 0
	}
	f := float64(e.Samples) / float64(e.Total)
	if f > 1 {
		return 1
	}
	return f
}

// CaptureErrorEvent is emitted when a capture run fails in the session worker.
type CaptureErrorEvent struct {
	baseEvent
	RunID string
	Err   error
}

// NewCaptureErrorEvent creates a CaptureErrorEvent.
func NewCaptureErrorEvent(runID string, err error) CaptureErrorEvent {
	return CaptureErrorEvent{
		baseEvent: newBaseEvent(TypeCaptureError),
		RunID:     runID,
		Err:       err,
	}
}
