package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	identityservice "vidtube-auth/internal/identity/service"
	"vidtube-auth/internal/platform/apperr"
)

const bearerPrefix = "bearer "

// AuthUnary returns a unary server interceptor that authenticates the Bearer
// access token from gRPC metadata and attaches the user to the context.
// publicMethods is the set of full method names that do not require a token
// (e.g. the health check). On a public method a missing or bad token is ignored.
func AuthUnary(auth identityservice.Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" && public {
			return handler(ctx, req)
		}
		u, err := auth.Authenticate(ctx, token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, apperr.GRPCStatus(err)
		}
		return handler(WithUser(ctx, u), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return parseBearer(vals[0])
}

// parseBearer strips a case-insensitive "Bearer " scheme from an Authorization value.
func parseBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
