package bm13xx

import (
	"errors"
	"fmt"

	"github.com/mujina-project/mujina-core/internal/bm13xx/frame"
)

var errNoFraming = errors.New("no candidate frame length produced a valid response")

func errInvalidPreamble(buf []byte) error {
	return fmt.Errorf("invalid response preamble: %#x %#x", buf[0], buf[1])
}

func errUnexpectedKind(want, got frame.ResponseKind) error {
	return fmt.Errorf("unexpected response kind: want %d, got %d", want, got)
}

func errMidstateCount(n MidstateCount) error {
	return fmt.Errorf("midstate count %d out of range [%d,%d]", n, minMidstates, maxMidstates)
}
