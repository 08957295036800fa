package transportgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	grpcinterceptors "github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/grpc/interceptors"
)

// Client calls authz.v1.AuthorizationService on behalf of one tenant.
type Client struct {
	conn   grpc.ClientConnInterface
	apiKey string
}

// NewClient wraps an established connection. apiKey is sent as x-api-key on every call.
func NewClient(conn grpc.ClientConnInterface, apiKey string) *Client {
	return &Client{conn: conn, apiKey: apiKey}
}

// Authorize asks whether userID may perform action on featureKey.
func (c *Client) Authorize(ctx context.Context, userID, featureKey, action string) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{
		"userId":  userID,
		"feature": featureKey,
		"action":  action,
	})
	if err != nil {
		return false, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx, ""), AuthorizeMethod, req, resp); err != nil {
		return false, err
	}
	return resp.GetFields()["allowed"].GetBoolValue(), nil
}

// Entitlements fetches the snapshot of the user behind accessToken.
func (c *Client) Entitlements(ctx context.Context, accessToken string) (map[string]any, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx, accessToken), EntitlementsMethod, &structpb.Struct{}, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// JWKS returns the raw key set document.
func (c *Client) JWKS(ctx context.Context) (string, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, JWKSMethod, &structpb.Struct{}, resp); err != nil {
		return "", err
	}
	return resp.GetFields()["jwks"].GetStringValue(), nil
}

func (c *Client) outgoing(ctx context.Context, accessToken string) context.Context {
	pairs := []string{grpcinterceptors.APIKeyMetadataKey, c.apiKey}
	if accessToken != "" {
		pairs = append(pairs, "authorization", "Bearer "+accessToken)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
