package player

import "errors"

// Error taxonomy. Every public operation maps its failure onto one of these
// sentinels; none of them are fatal and, except after Close, the engine
// remains operable after reporting any of them.
var (
	// ErrInvalidParams covers nil or unknown handles and nil out-pointers.
	ErrInvalidParams = errors.New("invalid params")

	// ErrInvalidState means the operation is illegal in the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrSourceOpen means the URI could not be resolved or the container
	// could not be probed.
	ErrSourceOpen = errors.New("source open failed")

	// ErrInvalidStreamIndex means a stream query was out of range.
	ErrInvalidStreamIndex = errors.New("invalid stream index")

	// ErrResourceExhausted means a frame buffer could not be allocated.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Status is the small integer code the entry-point surface returns. Boolean
// entry points (GetVideoData, GetAudioData) return a presence flag instead.
type Status int32

const (
	StatusOK                 Status = 0
	StatusInvalidParams      Status = -1
	StatusInvalidState       Status = -2
	StatusSourceOpen         Status = -3
	StatusInvalidStreamIndex Status = -4
	StatusResourceExhausted  Status = -5
)

// statusOf maps an engine error onto its entry-point status code.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidParams):
		return StatusInvalidParams
	case errors.Is(err, ErrInvalidState):
		return StatusInvalidState
	case errors.Is(err, ErrSourceOpen):
		return StatusSourceOpen
	case errors.Is(err, ErrInvalidStreamIndex):
		return StatusInvalidStreamIndex
	case errors.Is(err, ErrResourceExhausted):
		return StatusResourceExhausted
	default:
		return StatusInvalidState
	}
}
