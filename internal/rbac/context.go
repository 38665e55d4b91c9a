package rbac

import "context"

type identityContextKey struct{}

type ownershipContextKey struct{}

// ContextWithIdentity stores the authenticated identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// ContextWithResourceOwnership records how an ownership guard matched.
func ContextWithResourceOwnership(ctx context.Context, isOwner bool) context.Context {
	return context.WithValue(ctx, ownershipContextKey{}, isOwner)
}

// IsResourceOwner reports the ownership flag. ok is false when no ownership
// guard ran for the request.
func IsResourceOwner(ctx context.Context) (isOwner bool, ok bool) {
	isOwner, ok = ctx.Value(ownershipContextKey{}).(bool)
	return isOwner, ok
}
