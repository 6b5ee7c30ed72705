package auth

import (
	"context"
	"strings"
)

// Identity is the Firebase-authenticated caller. Authorisation decisions are made by services
// against the stored actor profile, so the role claim here is informational only.
type Identity struct {
	UID         string
	Email       string
	ClaimedRole string
}

// ActorID is the identifier services receive as the acting user.
func (i *Identity) ActorID() string {
	if i == nil {
		return ""
	}
	return strings.TrimSpace(i.UID)
}

// ServiceIdentity is a Google-signed service principal calling an internal endpoint.
type ServiceIdentity struct {
	Subject  string
	Email    string
	Issuer   string
	Audience string
}

type identityKey struct{}

type serviceIdentityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || identity == nil || identity.ActorID() == "" {
		return nil, false
	}
	return identity, true
}

func WithServiceIdentity(ctx context.Context, identity *ServiceIdentity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, serviceIdentityKey{}, identity)
}

func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, ok := ctx.Value(serviceIdentityKey{}).(*ServiceIdentity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
