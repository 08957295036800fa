package transportgrpc

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	grpcinterceptors "github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/grpc/interceptors"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "authz.v1.AuthorizationService"

	AuthorizeMethod    = "/" + ServiceName + "/Authorize"
	EntitlementsMethod = "/" + ServiceName + "/Entitlements"
	JWKSMethod         = "/" + ServiceName + "/JWKS"
)

// DecisionService answers authorization questions.
type DecisionService interface {
	Authorize(ctx context.Context, apiKey, userID, featureKey string, action domain.Action) (domain.Decision, error)
	Entitlements(ctx context.Context, apiKey, userID string) (*domain.EntitlementSnapshot, domain.Decision, error)
}

// KeySetSource publishes the verification keys as a JWKS document.
type KeySetSource interface {
	JWKS() ([]byte, error)
}

// AuthorizationServer implements authz.v1.AuthorizationService over structpb messages.
type AuthorizationServer struct {
	decisions DecisionService
	keys      KeySetSource
	logger    *zap.Logger
}

// NewAuthorizationServer constructs the gRPC authorization service.
func NewAuthorizationServer(decisions DecisionService, keys KeySetSource, log *zap.Logger) *AuthorizationServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthorizationServer{decisions: decisions, keys: keys, logger: log}
}

// Authorize expects {userId?, feature, action}. The caller's bearer identity is used when userId is absent.
func (s *AuthorizationServer) Authorize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	featureKey := strings.TrimSpace(fields["feature"].GetStringValue())
	if featureKey == "" {
		return nil, status.Error(codes.InvalidArgument, "feature is required")
	}
	action, err := domain.ParseAction(fields["action"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	userID := strings.TrimSpace(fields["userId"].GetStringValue())
	if userID == "" {
		if claims, ok := grpcinterceptors.ClaimsFromContext(ctx); ok {
			userID = claims.UserID
		}
	}
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId is required")
	}

	apiKey := grpcinterceptors.APIKeyFromContext(ctx)
	decision, err := s.decisions.Authorize(ctx, apiKey, userID, featureKey, action)
	if err != nil {
		s.logger.Error("authorize failed", zap.String("feature", featureKey), zap.Error(err))
		return nil, status.Error(codes.Unavailable, "service temporarily unavailable")
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"allowed": structpb.NewBoolValue(decision.Allowed),
	}}, nil
}

// Entitlements returns the snapshot for the authenticated user.
func (s *AuthorizationServer) Entitlements(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	claims, ok := grpcinterceptors.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "bearer token required")
	}

	apiKey := grpcinterceptors.APIKeyFromContext(ctx)
	snapshot, decision, err := s.decisions.Entitlements(ctx, apiKey, claims.UserID)
	if err != nil {
		s.logger.Error("entitlements failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, status.Error(codes.Unavailable, "service temporarily unavailable")
	}
	if !decision.Allowed || snapshot == nil {
		return nil, status.Error(codes.PermissionDenied, "not authorized")
	}
	if claims.LicenseID != "" && claims.LicenseID != snapshot.LicenseID {
		s.logger.Warn("token license does not match api key license",
			zap.String("token_license_id", claims.LicenseID),
			zap.String("license_id", snapshot.LicenseID))
		return nil, status.Error(codes.PermissionDenied, "not authorized")
	}

	return snapshotStruct(snapshot), nil
}

// JWKS returns the public signing keys under the "jwks" field as a JSON string.
func (s *AuthorizationServer) JWKS(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.keys == nil {
		return nil, status.Error(codes.Unimplemented, "key set not configured")
	}
	raw, err := s.keys.JWKS()
	if err != nil {
		s.logger.Error("render jwks failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "key set unavailable")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"jwks": structpb.NewStringValue(string(raw)),
	}}, nil
}

func snapshotStruct(snapshot *domain.EntitlementSnapshot) *structpb.Struct {
	permissions := make(map[string]*structpb.Value, len(snapshot.Permissions))
	for key, mask := range snapshot.Permissions.Masks() {
		permissions[key] = structpb.NewNumberValue(float64(mask))
	}
	modules := make([]*structpb.Value, 0, len(snapshot.Modules))
	for _, module := range snapshot.Modules {
		modules = append(modules, structpb.NewStringValue(module))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"licenseId":   structpb.NewStringValue(snapshot.LicenseID),
		"permissions": structpb.NewStructValue(&structpb.Struct{Fields: permissions}),
		"modules":     structpb.NewListValue(&structpb.ListValue{Values: modules}),
		"generatedAt": structpb.NewStringValue(snapshot.GeneratedAt.UTC().Format(time.RFC3339)),
	}}
}

// authorizationServiceServer is the handler type checked by grpc.Server.RegisterService.
type authorizationServiceServer interface {
	Authorize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Entitlements(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JWKS(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(fullMethod string, call func(authorizationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(authorizationServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthorizationServiceDesc describes authz.v1.AuthorizationService for grpc.Server.RegisterService.
var AuthorizationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*authorizationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Authorize",
			Handler: unaryHandler(AuthorizeMethod, func(s authorizationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Authorize(ctx, in)
			}),
		},
		{
			MethodName: "Entitlements",
			Handler: unaryHandler(EntitlementsMethod, func(s authorizationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Entitlements(ctx, in)
			}),
		},
		{
			MethodName: "JWKS",
			Handler: unaryHandler(JWKSMethod, func(s authorizationServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.JWKS(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authz/v1/authorization.proto",
}
