package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/verifybot/internal/logger"
)

// UnaryLoggingInterceptor logs every unary call with method, duration and
// status. Calls of quietMethods are logged at debug level.
func UnaryLoggingInterceptor(quietMethods ...string) grpc.UnaryServerInterceptor {
	quiet := make(map[string]struct{}, len(quietMethods))
	for _, m := range quietMethods {
		quiet[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()

		resp, err = handler(ctx, req)

		duration := time.Since(start)
		st, _ := status.FromError(err)

		logFn := logger.Log.Infow
		if _, ok := quiet[info.FullMethod]; ok && err == nil {
			logFn = logger.Log.Debugw
		}
		logFn(
			"gRPC request",
			"method", info.FullMethod,
			"duration", duration,
			"code", st.Code().String(),
			"message", st.Message(),
		)

		return resp, err
	}
}
