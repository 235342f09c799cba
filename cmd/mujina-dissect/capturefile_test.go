package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujina-project/mujina-core/internal/dissect/capture"
)

func writeCapture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestReadCaptureFileParsesSerialEvents(t *testing.T) {
	path := writeCapture(t, "# comment\nserial,CI,0.000100,0x55\nserial,RO,0.000200,0xaa,err\n")
	serialEvents, i2cEvents, err := readCaptureFile(path)
	require.NoError(t, err)
	require.Len(t, serialEvents, 2)
	assert.Empty(t, i2cEvents)
	assert.Equal(t, capture.CI, serialEvents[0].Channel)
	assert.Equal(t, byte(0x55), serialEvents[0].Data)
	assert.True(t, serialEvents[1].HasError)
}

func TestReadCaptureFileParsesI2cEvents(t *testing.T) {
	path := writeCapture(t, "i2c,start,0.0\ni2c,address,0.001,0x4c,write\ni2c,data,0.002,0x4a\ni2c,stop,0.003\n")
	serialEvents, i2cEvents, err := readCaptureFile(path)
	require.NoError(t, err)
	assert.Empty(t, serialEvents)
	require.Len(t, i2cEvents, 4)
	require.NotNil(t, i2cEvents[1].Address)
	assert.Equal(t, uint8(0x4c), *i2cEvents[1].Address)
	assert.False(t, i2cEvents[1].Read)
}

func TestReadCaptureFileRejectsUnknownFamily(t *testing.T) {
	path := writeCapture(t, "bogus,thing,0.0\n")
	_, _, err := readCaptureFile(path)
	assert.Error(t, err)
}
