package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("placed %d blocks", 3)
	assert.Equal(t, []string{"placed 3 blocks"}, got)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
	assert.Len(t, got, 1)
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()
	defer SetVerbose(false)

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	SetVerbose(false)
	Debugf("hidden %d", 1)
	assert.Empty(t, got)
	assert.False(t, Verbose())

	SetVerbose(true)
	Debugf("shown %d", 2)
	assert.Equal(t, []string{"shown 2"}, got)
	assert.True(t, Verbose())
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
}
