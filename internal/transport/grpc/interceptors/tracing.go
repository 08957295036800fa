package interceptors

import (
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// TracingServerOption instruments every RPC through an otelgrpc stats handler. Reflection
// calls from tooling are not traced.
func TracingServerOption(provider trace.TracerProvider, extra ...otelgrpc.Option) grpc.ServerOption {
	options := []otelgrpc.Option{otelgrpc.WithFilter(skipReflection)}
	if provider != nil {
		options = append(options, otelgrpc.WithTracerProvider(provider))
	}
	options = append(options, extra...)

	return grpc.StatsHandler(otelgrpc.NewServerHandler(options...))
}

func skipReflection(info *stats.RPCTagInfo) bool {
	return !strings.HasPrefix(info.FullMethodName, "/grpc.reflection.")
}
