package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), logger.Discard(), "", "propertyhub", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "collector:4318", hostOf("http://collector:4318/v1/traces"))
	assert.Equal(t, "otel.example.com", hostOf("https://otel.example.com"))
	assert.Equal(t, "localhost:4318", hostOf("localhost:4318"))
}
