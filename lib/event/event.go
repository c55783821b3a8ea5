// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"

	"github.com/roadlog-foundation/roadlog/lib/codec"
)

// Kind identifies the payload type of an event. The set is closed:
// firmware and backend agree on these values, and the wire format
// requires unknown values to be skipped, not rejected. Values are
// protocol constants — never renumber.
type Kind uint16

const (
	// KindUnknown is never written by devices. Reader yields it for
	// kinds this build does not know, with the payload left raw.
	KindUnknown Kind = 0

	// KindGpsLocation is a fix from the device's internal GNSS chip.
	KindGpsLocation Kind = 1

	// KindGpsLocationExternal is a fix from the panda's GNSS chip.
	// Same payload shape as KindGpsLocation.
	KindGpsLocationExternal Kind = 2

	// KindDeviceState reports device status transitions, notably
	// going on-road (engine start) and off-road.
	KindDeviceState Kind = 3

	// KindThumbnail carries a JPEG frame captured from the forward
	// camera, roughly one per 20 seconds of driving.
	KindThumbnail Kind = 4

	// KindCarParams is emitted once per drive after platform
	// detection, carrying the car fingerprint.
	KindCarParams Kind = 5

	KindCarState           Kind = 6
	KindCarControl         Kind = 7
	KindControlsState      Kind = 8
	KindLongitudinalPlan   Kind = 9
	KindLiveCalibration    Kind = 10
	KindLiveLocationKalman Kind = 11
	KindCan                Kind = 12
	KindSendCan            Kind = 13
	KindLogMessage         Kind = 14
	KindErrorLogMessage    Kind = 15
	KindPandaState         Kind = 16
	KindDriverMonitoring   Kind = 17
	KindModelOutput        Kind = 18
	KindProcLog            Kind = 19
	KindClocks             Kind = 20
)

// String returns the camelCase kind name used in unlog dumps.
func (k Kind) String() string {
	switch k {
	case KindGpsLocation:
		return "gpsLocation"
	case KindGpsLocationExternal:
		return "gpsLocationExternal"
	case KindDeviceState:
		return "deviceState"
	case KindThumbnail:
		return "thumbnail"
	case KindCarParams:
		return "carParams"
	case KindCarState:
		return "carState"
	case KindCarControl:
		return "carControl"
	case KindControlsState:
		return "controlsState"
	case KindLongitudinalPlan:
		return "longitudinalPlan"
	case KindLiveCalibration:
		return "liveCalibration"
	case KindLiveLocationKalman:
		return "liveLocationKalman"
	case KindCan:
		return "can"
	case KindSendCan:
		return "sendcan"
	case KindLogMessage:
		return "logMessage"
	case KindErrorLogMessage:
		return "errorLogMessage"
	case KindPandaState:
		return "pandaState"
	case KindDriverMonitoring:
		return "driverMonitoringState"
	case KindModelOutput:
		return "modelV2"
	case KindProcLog:
		return "procLog"
	case KindClocks:
		return "clocks"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(k))
	}
}

// GpsFix is the payload for KindGpsLocation and
// KindGpsLocationExternal.
type GpsFix struct {
	// HasFix is the receiver's fix-valid flag. Fixes without it carry
	// a wall-clock timestamp but no usable position.
	HasFix bool `cbor:"has_fix"`

	Latitude  float64 `cbor:"lat"`
	Longitude float64 `cbor:"lng"`
	Altitude  float64 `cbor:"alt"`

	// SpeedMPS is ground speed in meters per second.
	SpeedMPS   float64 `cbor:"speed"`
	BearingDeg float64 `cbor:"bearing"`
	AccuracyM  float64 `cbor:"accuracy"`

	// UnixMillis is the receiver's wall-clock time for the fix.
	// Present (and trusted) even when HasFix is false.
	UnixMillis int64 `cbor:"utc_millis"`
}

// DeviceState is the payload for KindDeviceState.
type DeviceState struct {
	// Started is true when the device has gone on-road. The event's
	// LogMonoTime is the on-road epoch for elapsed-time calculation.
	Started bool `cbor:"started"`

	FreeSpacePercent float64 `cbor:"free_space"`
	MemoryUsage      float64 `cbor:"mem_usage"`
}

// Thumbnail is the payload for KindThumbnail.
type Thumbnail struct {
	FrameID uint32 `cbor:"frame_id"`
	Jpeg    []byte `cbor:"jpeg"`
}

// CarParams is the payload for KindCarParams.
type CarParams struct {
	CarName        string `cbor:"car_name"`
	CarFingerprint string `cbor:"car_fingerprint"`
}

// CarState is the payload for KindCarState.
type CarState struct {
	SpeedMPS         float64 `cbor:"v_ego"`
	AccelerationMPS2 float64 `cbor:"a_ego"`
	SteeringAngleDeg float64 `cbor:"steering_angle"`
	GasPressed       bool    `cbor:"gas_pressed"`
	BrakePressed     bool    `cbor:"brake_pressed"`
}

// CarControl is the payload for KindCarControl.
type CarControl struct {
	Enabled bool    `cbor:"enabled"`
	Accel   float64 `cbor:"accel"`
	Steer   float64 `cbor:"steer"`
}

// ControlsState is the payload for KindControlsState.
type ControlsState struct {
	Enabled   bool   `cbor:"enabled"`
	State     string `cbor:"state"`
	AlertText string `cbor:"alert_text"`
}

// LongitudinalPlan is the payload for KindLongitudinalPlan.
type LongitudinalPlan struct {
	Speeds []float64 `cbor:"speeds"`
	Accels []float64 `cbor:"accels"`
}

// LiveCalibration is the payload for KindLiveCalibration.
type LiveCalibration struct {
	RPYCalib  [3]float64 `cbor:"rpy_calib"`
	Valid     bool       `cbor:"valid"`
	CalStatus int        `cbor:"cal_status"`
}

// LiveLocationKalman is the payload for KindLiveLocationKalman. The
// geodetic position is present in raw device logs; the anonymization
// pass strips it (see ReducedKalman) — only the reduced form ever
// leaves the device's own upload.
type LiveLocationKalman struct {
	PositionGeodetic   [3]float64 `cbor:"position_geodetic"`
	VelocityCalibrated [3]float64 `cbor:"velocity_calibrated"`
	OrientationNED     [3]float64 `cbor:"orientation_ned"`
	Valid              bool       `cbor:"valid"`
}

// ReducedKalman is the anonymized form of LiveLocationKalman: the
// device-frame kinematics without any absolute position.
type ReducedKalman struct {
	VelocityCalibrated [3]float64 `cbor:"velocity_calibrated"`
	OrientationNED     [3]float64 `cbor:"orientation_ned"`
	Valid              bool       `cbor:"valid"`
}

// CanFrame is a single CAN bus frame.
type CanFrame struct {
	Address uint32 `cbor:"address"`
	Data    []byte `cbor:"data"`
	Src     uint8  `cbor:"src"`
}

// CanData is the payload for KindCan and KindSendCan: a batch of
// frames captured in one poll of the bus.
type CanData struct {
	Frames []CanFrame `cbor:"frames"`
}

// LogText is the payload for KindLogMessage and KindErrorLogMessage.
type LogText struct {
	Text string `cbor:"text"`
}

// PandaState is the payload for KindPandaState.
type PandaState struct {
	IgnitionLine bool   `cbor:"ignition_line"`
	VoltageMV    uint32 `cbor:"voltage"`
}

// DriverMonitoring is the payload for KindDriverMonitoring.
type DriverMonitoring struct {
	FaceDetected bool    `cbor:"face_detected"`
	Awareness    float64 `cbor:"awareness"`
}

// Clocks is the payload for KindClocks, correlating the monotonic
// log clock with wall time.
type Clocks struct {
	WallTimeNanos uint64 `cbor:"wall_time"`
}

// Event is one decoded frame. Payload holds a pointer to the decoded
// kind-specific struct for kinds this package models; it is nil for
// KindModelOutput, KindProcLog, and unknown kinds, whose payloads are
// carried only in Raw. Raw is always the undecoded payload bytes, so
// a re-encoder can copy an event without understanding it.
type Event struct {
	// LogMonoTime is the device monotonic clock at capture, in
	// nanoseconds. Monotonic across one boot, not across boots —
	// never compare across segments of different routes.
	LogMonoTime uint64

	Kind    Kind
	Payload any
	Raw     codec.RawMessage
}

// MonoSeconds returns LogMonoTime as seconds.
func (e Event) MonoSeconds() float64 {
	return float64(e.LogMonoTime) / 1e9
}

// Gps returns the GPS payload when the event is a fix from either
// source.
func (e Event) Gps() (*GpsFix, bool) {
	if e.Kind != KindGpsLocation && e.Kind != KindGpsLocationExternal {
		return nil, false
	}
	fix, ok := e.Payload.(*GpsFix)
	return fix, ok
}

// envelope is the on-wire frame body. Integer keys keep per-event
// overhead small at CAN frequencies (~100 events/sec in rlog).
type envelope struct {
	LogMonoTime uint64           `cbor:"1,keyasint"`
	Kind        Kind             `cbor:"2,keyasint"`
	Data        codec.RawMessage `cbor:"3,keyasint,omitempty"`
}

// decodePayload decodes raw into the struct for kind. Kinds without a
// modeled payload return (nil, nil): the event is still yielded with
// its raw bytes. A decode failure is a malformed frame — the Reader
// treats it as end of stream.
func decodePayload(kind Kind, raw codec.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var target any
	switch kind {
	case KindGpsLocation, KindGpsLocationExternal:
		target = new(GpsFix)
	case KindDeviceState:
		target = new(DeviceState)
	case KindThumbnail:
		target = new(Thumbnail)
	case KindCarParams:
		target = new(CarParams)
	case KindCarState:
		target = new(CarState)
	case KindCarControl:
		target = new(CarControl)
	case KindControlsState:
		target = new(ControlsState)
	case KindLongitudinalPlan:
		target = new(LongitudinalPlan)
	case KindLiveCalibration:
		target = new(LiveCalibration)
	case KindLiveLocationKalman:
		target = new(LiveLocationKalman)
	case KindCan, KindSendCan:
		target = new(CanData)
	case KindLogMessage, KindErrorLogMessage:
		target = new(LogText)
	case KindPandaState:
		target = new(PandaState)
	case KindDriverMonitoring:
		target = new(DriverMonitoring)
	case KindClocks:
		target = new(Clocks)
	default:
		// ModelOutput, ProcLog, and kinds from newer firmware: the
		// payload stays raw.
		return nil, nil
	}

	if err := codec.Unmarshal(raw, target); err != nil {
		return nil, err
	}
	return target, nil
}
