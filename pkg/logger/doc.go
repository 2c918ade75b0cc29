// Package logger provides structured logging for the service.
//
// It builds on log/slog with two additions: context extractors that inject
// request-scoped attributes (request id, account owner id) into every
// record, and optional Sentry forwarding for warnings and errors with a
// graceful stdout-only fallback when no DSN is configured.
//
// # Usage
//
//	log := logger.NewWithSentry(sentryCfg, logCfg,
//	    func(ctx context.Context) (slog.Attr, bool) {
//	        if id, ok := requestid.FromContext(ctx); ok {
//	            return slog.String("request_id", id), true
//	        }
//	        return slog.Attr{}, false
//	    },
//	)
//	log.InfoContext(ctx, "dispatch started", slog.Int64("owner_id", ownerID))
package logger
