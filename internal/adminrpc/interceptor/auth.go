package interceptor

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/flatapi/internal/logger"
)

// AuthorizationKey is the metadata key carrying the admin key.
const AuthorizationKey = "authorization"

// UnaryAdminKeyInterceptor rejects calls to the listed methods unless they
// carry adminKey. An empty adminKey rejects everything.
func UnaryAdminKeyInterceptor(adminKey string, protectedMethods []string) grpc.UnaryServerInterceptor {
	protected := make(map[string]struct{}, len(protectedMethods))
	for _, m := range protectedMethods {
		protected[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if _, ok := protected[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		var presented string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(AuthorizationKey); len(values) > 0 {
				presented = values[0]
			}
		}

		if adminKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(adminKey)) != 1 {
			logger.Log.Debugw("admin call rejected", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "missing or invalid admin key")
		}

		return handler(ctx, req)
	}
}
