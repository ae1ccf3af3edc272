package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	svc := NewMessageService(nil, nil, time.Minute, 50, 200, quietLogger())

	assert.Equal(t, 50, svc.clampLimit(0), "zero means the default")
	assert.Equal(t, 50, svc.clampLimit(-3))
	assert.Equal(t, 1, svc.clampLimit(1))
	assert.Equal(t, 200, svc.clampLimit(200))
	assert.Equal(t, 200, svc.clampLimit(5000), "clamped to the maximum")
}

func TestNewMessageServiceDefaults(t *testing.T) {
	svc := NewMessageService(nil, nil, time.Minute, 0, 0, quietLogger())

	assert.Equal(t, 50, svc.defaultLimit)
	assert.Equal(t, 50, svc.maxLimit, "max is raised to at least the default")
}
