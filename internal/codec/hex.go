// internal/codec/hex.go
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEncoding is returned when text is not a valid encoded template.
var ErrMalformedEncoding = errors.New("codec: malformed encoding")

const hexDigits = "0123456789abcdef"

// EncodeHex renders each byte as two lowercase hex digits separated by
// single spaces, with no trailing separator. Empty input encodes to "".
func EncodeHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(b)*3 - 1)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hexDigits[v>>4])
		sb.WriteByte(hexDigits[v&0x0F])
	}
	return sb.String()
}

// DecodeHex is the exact inverse of EncodeHex.
// Both digit cases are accepted, but the layout must match exactly:
// pairs of digits, one space between pairs, nothing else.
func DecodeHex(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	if (len(s)+1)%3 != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedEncoding, len(s))
	}

	out := make([]byte, (len(s)+1)/3)
	for i := range out {
		pos := i * 3
		if i > 0 && s[pos-1] != ' ' {
			return nil, fmt.Errorf("%w: expected separator at offset %d", ErrMalformedEncoding, pos-1)
		}
		hi, ok1 := nibble(s[pos])
		lo, ok2 := nibble(s[pos+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: invalid digit at offset %d", ErrMalformedEncoding, pos)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
