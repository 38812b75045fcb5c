package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/metrics"
)

// LoggingInterceptor puts a request logger into every call's context and
// logs the outcome.
func LoggingInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		log := logger.ForRequest(base, info.FullMethod)
		start := time.Now()

		resp, err := handler(logger.NewContext(ctx, log), req)

		code := status.Code(err)
		if err != nil {
			log.Warn("request failed", "code", code.String(), "err", err, "elapsed", time.Since(start))
		} else {
			log.Debug("request done", "elapsed", time.Since(start))
		}
		return resp, err
	}
}

// MetricsInterceptor records call counts and latency.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.RequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		metrics.RequestLatency.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
