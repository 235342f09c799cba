package bm13xx

import "io"

// Link is the minimal duplex byte transport a Handler needs: writing
// encoded frames to the chain and reading response frames back. UART
// device access itself lives in the supervising binary; this package
// only needs to write and read bytes (spec §1 treats the physical
// UART driver as an external collaborator).
type Link interface {
	io.Writer
	io.Reader
}
