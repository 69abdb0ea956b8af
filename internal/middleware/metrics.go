package middleware

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/kudos/internal/metrics"
)

// MetricsInterceptor records count, latency and result code of every RPC.
// Install it outermost so rejected calls are counted too.
func MetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			done := metrics.RPCStarted()
			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			done(req.Spec().Procedure, code)
			return resp, err
		}
	}
}
