// internal/sensor/state.go
package sensor

// State tracks where the protocol is in the capture/enroll/match sequence.
type State uint8

const (
	StateIdle State = iota
	StateImageCapturing
	StateImageCaptured
	StateFeatureExtracting
	StateFeatureReady
	StateModelCreating
	StateModelLoading
	StateModelReady
	StateModelStoring
	StateModelFetching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImageCapturing:
		return "image_capturing"
	case StateImageCaptured:
		return "image_captured"
	case StateFeatureExtracting:
		return "feature_extracting"
	case StateFeatureReady:
		return "feature_ready"
	case StateModelCreating:
		return "model_creating"
	case StateModelLoading:
		return "model_loading"
	case StateModelReady:
		return "model_ready"
	case StateModelStoring:
		return "model_storing"
	case StateModelFetching:
		return "model_fetching"
	case StateDone:
		return "done"
	default:
		return "failed"
	}
}
