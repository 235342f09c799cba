package bm13xx

import (
	"io"

	"github.com/mujina-project/mujina-core/internal/bm13xx/frame"
	"github.com/mujina-project/mujina-core/internal/mujerr"
)

// candidateResponseLens are the total frame lengths a response can take:
// chip-version (7), nonce-found minimal (8), register-value (10), and
// nonce-found extended (11). Unlike the dissector's serial assembler
// (which works offline against a capture and accepts a length heuristic),
// a live link reader can try each candidate boundary in turn and confirm
// it against the decoded kind, since frame.DecodeResponse already rejects
// a kind/length mismatch.
var candidateResponseLens = []int{7, 8, 10, 11}

// readResponse reads one response frame off link, growing the read up to
// each candidate boundary until the bytes decode to a complete, CRC-valid
// response. It does not retry past the longest candidate length; a caller
// facing repeated framing failures should treat that as a resync signal
// (spec §4.I; CRC failure on a response is the caller's concern, not this
// reader's).
func readResponse(r io.Reader) (frame.Response, error) {
	buf := make([]byte, 0, candidateResponseLens[len(candidateResponseLens)-1])
	one := make([]byte, 1)

	for _, total := range candidateResponseLens {
		for len(buf) < total {
			if _, err := io.ReadFull(r, one); err != nil {
				return frame.Response{}, mujerr.New(mujerr.Transport, "read_response", err)
			}
			buf = append(buf, one[0])
			if len(buf) == 2 && (buf[0] != frame.PreambleChip0 || buf[1] != frame.PreambleChip1) {
				return frame.Response{}, mujerr.New(mujerr.Frame, "read_response", errInvalidPreamble(buf))
			}
		}

		resp, err := frame.DecodeResponse(buf)
		if err == nil && resp.CRC5 == frame.CRCValid {
			return resp, nil
		}
	}

	return frame.Response{}, mujerr.New(mujerr.Frame, "read_response", errNoFraming)
}
