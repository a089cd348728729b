package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrettyDuration(t *testing.T) {
	assert.Equal(t, "1.234ms", PrettyDuration(1234567*time.Nanosecond).String())
	assert.Equal(t, "2s", PrettyDuration(2*time.Second).String())
	assert.Equal(t, "1m30.5s", PrettyDuration(90500*time.Millisecond).String())
}
