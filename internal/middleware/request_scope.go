// file: internal/middleware/request_scope.go
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/google/uuid"
)

// RequestScopeOptions configures NewRequestScope.
type RequestScopeOptions struct {
	// Timeout bounds each message. Zero disables the deadline.
	Timeout time.Duration
	// SlowThreshold logs requests slower than this at warn level. Zero disables.
	SlowThreshold time.Duration
}

// NewRequestScope returns middleware that gives every message a correlation ID
// (stored with logging.ContextWithRequestID), applies the per-request timeout and
// logs how long the message took.
func NewRequestScope(opts RequestScopeOptions, logger logging.Logger) mcptypes.MiddlewareFunc {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	logger = logger.WithField("middleware", "request_scope")

	return func(next mcptypes.MessageHandler) mcptypes.MessageHandler {
		return func(ctx context.Context, message []byte) ([]byte, error) {
			if _, ok := logging.RequestIDFromContext(ctx); !ok {
				ctx = logging.ContextWithRequestID(ctx, uuid.New().String())
			}
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			method, id := peekMethodAndID(message)
			log := logger.WithContext(ctx)
			log.Debug("Handling message.", "method", method, "jsonrpcID", id)

			start := time.Now()
			resp, err := next(ctx, message)
			elapsed := time.Since(start)

			switch {
			case err != nil:
				log.Debug("Message handling failed.", "method", method, "duration", elapsed.String(), "error", fmt.Sprintf("%+v", err))
			case opts.SlowThreshold > 0 && elapsed > opts.SlowThreshold:
				log.Warn("Slow message handling.", "method", method, "duration", elapsed.String())
			default:
				log.Debug("Message handled.", "method", method, "duration", elapsed.String())
			}
			return resp, err
		}
	}
}

// peekMethodAndID extracts method and ID for logging without failing on bad input.
func peekMethodAndID(message []byte) (string, string) {
	var probe struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(message, &probe); err != nil {
		return "", ""
	}
	return probe.Method, string(probe.ID)
}
