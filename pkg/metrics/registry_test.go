package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNCIMetrics_DisabledReturnsNil(t *testing.T) {
	enabled = false
	registry = nil

	assert.False(t, IsEnabled())
	assert.Nil(t, NewNCIMetrics())
	assert.Nil(t, NewLLCPMetrics())
	assert.Nil(t, NewSNEPMetrics())
}

func TestInitRegistry_EnablesAndReturnsRegistry(t *testing.T) {
	reg := InitRegistry()
	defer func() { enabled = false; registry = nil }()

	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
}
