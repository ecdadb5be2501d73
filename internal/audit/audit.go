// Package audit emite eventos de cuenta (altas, vínculos, bajas de vínculo)
// como entradas estructuradas separadas del log operativo.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

const (
	EventUserProvisioned    = "user_provisioned"
	EventProviderLinked     = "provider_linked"
	EventProviderUnlinked   = "provider_unlinked"
	EventSocialLogin        = "social_login"
	EventLinkRejected       = "link_rejected"
	EventDisabledUserDenied = "disabled_user_denied"
)

// Log escribe un evento de auditoría con el logger del contexto.
// Nunca incluir tokens ni emails en claro en fields.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, logger.Component("audit"), zap.String("event", event))
	fs = append(fs, fields...)
	logger.From(ctx).Info("audit", fs...)
}
