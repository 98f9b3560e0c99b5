// internal/status/constants.go
package status

// Terminal Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per terminal.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the terminal health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last raw error code.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the terminal has been in error.
const SlotSecondsInError = 2

// SlotLastDecision holds the last Decision* code.
const SlotLastDecision = 3

// SlotLastIdentity holds the slot id of the last enrolled or matched finger.
const SlotLastIdentity = 4

// SlotLastConfidence holds the confidence of the last match.
const SlotLastConfidence = 5

// SlotObjectTemp holds the last object temperature in centi-degrees
// Celsius, two's complement.
const SlotObjectTemp = 6

// SlotLiveEnd is the last slot rewritten on incremental updates (inclusive).
const SlotLiveEnd = SlotObjectTemp

// ---- RESERVED RANGE ----

// Slots 7-10 are reserved for future use.
const SlotReservedStart = 7
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// MaxSecondsInError is where the seconds counter saturates.
const MaxSecondsInError = 65535

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy terminal.
const HealthOK uint16 = 1

// HealthError represents a terminal error state.
const HealthError uint16 = 2

// ---- DECISION CODES ----

const (
	DecisionNone                    uint16 = 0
	DecisionAccepted                uint16 = 1
	DecisionRejectedNoMatch         uint16 = 2
	DecisionRejectedHighTemperature uint16 = 3
	DecisionFailed                  uint16 = 4
	DecisionEnrolled                uint16 = 5
)
