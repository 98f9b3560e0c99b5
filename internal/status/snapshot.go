// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	LastDecision   uint16
	LastIdentity   uint16
	LastConfidence uint16
	ObjectTemp     int16 // centi-degrees Celsius
}
