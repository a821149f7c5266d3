package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/diabetes-companion/internal/config"
	"github.com/vladimiradmaev/diabetes-companion/internal/logger"
)

func TestNewServerAppliesConfig(t *testing.T) {
	s := NewServer(config.HTTPConfig{Port: "9090", ReadTimeout: 5 * time.Second, WriteTimeout: 45 * time.Second},
		http.NotFoundHandler(), logger.Discard())

	assert.Equal(t, ":9090", s.server.Addr)
	assert.Equal(t, 5*time.Second, s.server.ReadTimeout)
	assert.Equal(t, 45*time.Second, s.server.WriteTimeout)
}

func TestStartStop(t *testing.T) {
	s := NewServer(config.HTTPConfig{Port: "0"}, http.NotFoundHandler(), logger.Discard())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
