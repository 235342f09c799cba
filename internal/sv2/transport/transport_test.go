package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLAcceptsSv2Tcp(t *testing.T) {
	addr, err := ParseURL("sv2+tcp://127.0.0.1:3333")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3333", addr)
}

func TestParseURLRejectsOtherSchemes(t *testing.T) {
	_, err := ParseURL("stratum+tcp://127.0.0.1:3333")
	assert.Error(t, err)
}

func TestParseURLRejectsMissingHost(t *testing.T) {
	_, err := ParseURL("sv2+tcp://")
	assert.Error(t, err)
}
