package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(0)
	assert.Equal(t, rate.Inf, unlimited.Limit())

	l := newLimiter(120)
	assert.Equal(t, rate.Limit(2), l.Limit())
	assert.Equal(t, 12, l.Burst())

	assert.Equal(t, 1, newLimiter(5).Burst())
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()

	assert.NotNil(t, cmd.Flags().Lookup("config"))
	assert.NotNil(t, cmd.Flags().Lookup("port"))
}
