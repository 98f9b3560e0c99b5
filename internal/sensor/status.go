// internal/sensor/status.go
package sensor

import (
	"errors"
	"fmt"
)

// StatusCode is the closed set of outcomes of a protocol operation.
// Raw confirmation bytes never leave this package uninterpreted: each
// operation maps them through its own table and anything not listed
// there becomes Unknown.
type StatusCode uint8

const (
	Ok StatusCode = iota
	NoFingerPresent
	CommError
	ImagingError
	ImageTooMessy
	FeatureExtractionFailed
	InvalidImage
	CapturesMismatched
	InvalidSlot
	PersistFailure
	NoMatch
	PasswordRejected
	Unknown
)

var statusNames = [...]string{
	Ok:                      "ok",
	NoFingerPresent:         "no_finger",
	CommError:               "comm_error",
	ImagingError:            "imaging_error",
	ImageTooMessy:           "image_too_messy",
	FeatureExtractionFailed: "feature_extraction_failed",
	InvalidImage:            "invalid_image",
	CapturesMismatched:      "captures_mismatched",
	InvalidSlot:             "invalid_slot",
	PersistFailure:          "persist_failure",
	NoMatch:                 "no_match",
	PasswordRejected:        "password_rejected",
	Unknown:                 "unknown",
}

func (s StatusCode) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Raw confirmation codes sent by the module in ack packets.
const (
	ConfirmOK             byte = 0x00
	ConfirmPacketRecvErr  byte = 0x01
	ConfirmNoFinger       byte = 0x02
	ConfirmImageFail      byte = 0x03
	ConfirmImageMess      byte = 0x06
	ConfirmFeatureFail    byte = 0x07
	ConfirmNoMatch        byte = 0x08
	ConfirmNotFound       byte = 0x09
	ConfirmEnrollMismatch byte = 0x0A
	ConfirmBadLocation    byte = 0x0B
	ConfirmDBReadFail     byte = 0x0C
	ConfirmUploadFail     byte = 0x0D
	ConfirmPassFail       byte = 0x13
	ConfirmInvalidImage   byte = 0x15
	ConfirmFlashErr       byte = 0x18

	// Host-side codes for faults that never reached an ack packet.
	ConfirmBadPacket byte = 0xFE
	ConfirmTimeout   byte = 0xFF
)

// operation binds an operation name to its discrimination table.
type operation struct {
	name  string
	codes map[byte]StatusCode
}

// discriminate is the single interpretation point for an operation's
// confirmation byte.
func (op operation) discriminate(raw byte) StatusCode {
	if s, ok := op.codes[raw]; ok {
		return s
	}
	return Unknown
}

var (
	opCaptureImage = operation{"captureImage", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmNoFinger:      NoFingerPresent,
		ConfirmPacketRecvErr: CommError,
		ConfirmImageFail:     ImagingError,
	}}

	opExtractFeatures = operation{"extractFeatures", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmImageMess:     ImageTooMessy,
		ConfirmPacketRecvErr: CommError,
		ConfirmFeatureFail:   FeatureExtractionFailed,
		ConfirmInvalidImage:  InvalidImage,
	}}

	opCreateModel = operation{"createModel", map[byte]StatusCode{
		ConfirmOK:             Ok,
		ConfirmPacketRecvErr:  CommError,
		ConfirmEnrollMismatch: CapturesMismatched,
	}}

	opStoreModel = operation{"storeModel", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
		ConfirmBadLocation:   InvalidSlot,
		ConfirmFlashErr:      PersistFailure,
	}}

	opLoadModel = operation{"loadModel", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
	}}

	opFetchModel = operation{"fetchModel", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
	}}

	opSearch = operation{"search", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
		ConfirmNotFound:      NoMatch,
	}}

	opVerifyPassword = operation{"verifyPassword", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
		ConfirmPassFail:      PasswordRejected,
	}}

	opReadParameters = operation{"readParameters", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
	}}

	opTemplateCount = operation{"templateCount", map[byte]StatusCode{
		ConfirmOK:            Ok,
		ConfirmPacketRecvErr: CommError,
	}}
)

// Class groups status codes by how a caller should react.
type Class uint8

const (
	// ClassExpected covers Ok and outcomes that are part of normal flow
	// (no finger while polling, no match on search).
	ClassExpected Class = iota
	ClassCommunication
	ClassSensorFault
	ClassCapacityOrSlot
	ClassUnrecognized
)

func (c Class) String() string {
	switch c {
	case ClassExpected:
		return "expected"
	case ClassCommunication:
		return "communication"
	case ClassSensorFault:
		return "sensor_fault"
	case ClassCapacityOrSlot:
		return "capacity_or_slot"
	default:
		return "unrecognized"
	}
}

// Class returns the error class of s.
func (s StatusCode) Class() Class {
	switch s {
	case Ok, NoFingerPresent, NoMatch:
		return ClassExpected
	case CommError, PasswordRejected:
		return ClassCommunication
	case ImagingError, ImageTooMessy, FeatureExtractionFailed, InvalidImage, CapturesMismatched:
		return ClassSensorFault
	case InvalidSlot, PersistFailure:
		return ClassCapacityOrSlot
	default:
		return ClassUnrecognized
	}
}

// Error is returned by every protocol operation that did not end in Ok.
type Error struct {
	Op     string
	Status StatusCode
	Raw    byte  // confirmation byte, or ConfirmTimeout / ConfirmBadPacket
	Err    error // transport cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sensor %s: %s (0x%02X): %v", e.Op, e.Status, e.Raw, e.Err)
	}
	return fmt.Sprintf("sensor %s: %s (0x%02X)", e.Op, e.Status, e.Raw)
}

func (e *Error) Unwrap() error { return e.Err }

// Code exposes the raw confirmation byte for status reporting.
func (e *Error) Code() uint16 { return uint16(e.Raw) }

// Class returns the error class of the carried status.
func (e *Error) Class() Class { return e.Status.Class() }

// StatusOf recovers the StatusCode carried by err.
// nil maps to Ok; errors that carry no status map to Unknown.
func StatusOf(err error) StatusCode {
	if err == nil {
		return Ok
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return Unknown
}

// Retryable reports whether a fresh capture cycle may succeed where err failed.
func Retryable(err error) bool {
	return StatusOf(err).Class() == ClassSensorFault
}
