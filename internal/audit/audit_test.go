package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

func TestLog_UsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	Log(ctx, EventProviderLinked, logger.UserID("u1"), logger.Provider("github"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "audit", fields["component"])
	assert.Equal(t, EventProviderLinked, fields["event"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "github", fields["provider"])
}
