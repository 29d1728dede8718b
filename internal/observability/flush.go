package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FlushTelemetry flushes buffered logs before exit. Metrics are pull-based and need no flush.
// Sync errors on stderr/stdout (ENOTTY, EINVAL) are common in containers and are ignored.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil || ctx.Err() != nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !isConsoleSyncError(err) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

func isConsoleSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "inappropriate ioctl") || strings.Contains(msg, "invalid argument") || strings.Contains(msg, "bad file descriptor")
}
