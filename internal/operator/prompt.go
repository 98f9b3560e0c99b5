// internal/operator/prompt.go
package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tamzrod/fingerprint-terminal/internal/sensor"
)

// Prompter asks the operator for a slot id on a line-oriented console.
type Prompter struct {
	in       *bufio.Scanner
	out      io.Writer
	capacity func() uint16
	log      zerolog.Logger
}

// New creates a prompter. capacity is consulted on every prompt so the
// range follows what the module reported at bring-up.
func New(in io.Reader, out io.Writer, capacity func() uint16, log zerolog.Logger) *Prompter {
	return &Prompter{
		in:       bufio.NewScanner(in),
		out:      out,
		capacity: capacity,
		log:      log.With().Str("component", "operator").Logger(),
	}
}

// Say writes one line of operator guidance.
func (p *Prompter) Say(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// ReadSlot blocks until the operator enters a slot id in range.
// 0 means "no input" and re-prompts, as do non-numbers and values
// above capacity. End of input returns io.EOF.
func (p *Prompter) ReadSlot(ctx context.Context) (sensor.SlotID, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		limit := p.capacity()
		p.Say("Please type in the ID # (from 1 to %d) you want to save this finger as...", limit)

		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}

		line := strings.TrimSpace(p.in.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseUint(line, 10, 16)
		if err != nil {
			p.log.Debug().Str("input", line).Msg("not a slot id")
			continue
		}
		if n == 0 || n > uint64(limit) {
			p.log.Debug().Uint64("input", n).Uint16("capacity", limit).Msg("slot id out of range")
			continue
		}
		return sensor.SlotID(n), nil
	}
}
