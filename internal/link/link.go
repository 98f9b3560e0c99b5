// internal/link/link.go
package link

import "errors"

// ErrNoData is returned by ReadByte when no byte is pending.
var ErrNoData = errors.New("link: no data available")

// ErrClosed is returned by operations on a closed link.
var ErrClosed = errors.New("link: closed")

// Link is the byte channel to the fingerprint module.
// It is owned by exactly one caller at a time; implementations are not
// required to be safe for concurrent use.
type Link interface {
	// Write sends raw bytes to the module.
	Write(p []byte) (int, error)

	// Available reports whether ReadByte would return a byte or a link
	// failure without waiting longer than the link's poll granularity.
	Available() bool

	// ReadByte consumes one pending byte. ErrNoData means nothing was pending.
	ReadByte() (byte, error)

	Close() error
}
