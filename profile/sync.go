// Package profile materializes synthetic hierarchy nodes as access profiles
// on the identity platform: non-requestable grouping objects used for
// provisioning bookkeeping, distinct from the proxy entitlements used for
// requesting.
package profile

import (
	"context"
	"fmt"

	"github.com/open-iga/proxykit/core"
)

// API is the slice of the platform client the synchronizer needs.
type API interface {
	GetAccessProfileByName(ctx context.Context, name string) (core.AccessProfile, bool, error)
	CreateAccessProfile(ctx context.Context, p core.AccessProfile) (core.AccessProfile, error)
	PatchAccessProfile(ctx context.Context, id string, entitlementIDs []string, requestable bool) (core.AccessProfile, error)
}

// Synchronizer upserts one access profile per synthetic node.
type Synchronizer struct {
	api API
}

// New constructs a Synchronizer.
func New(api API) *Synchronizer {
	return &Synchronizer{api: api}
}

// Sync looks up the profile by name. When found, its membership is replaced
// with underlyingIDs and requestable is forced false (the profile itself is
// never a request target). When absent, a new non-requestable profile is
// created for ownerID scoped to sourceID.
func (s *Synchronizer) Sync(ctx context.Context, name, ownerID, sourceID string, underlyingIDs []string) (core.AccessProfile, error) {
	existing, found, err := s.api.GetAccessProfileByName(ctx, name)
	if err != nil {
		return core.AccessProfile{}, fmt.Errorf("lookup access profile %q: %w", name, err)
	}
	if found {
		patched, err := s.api.PatchAccessProfile(ctx, existing.ID, underlyingIDs, false)
		if err != nil {
			return core.AccessProfile{}, fmt.Errorf("patch access profile %q: %w", name, err)
		}
		return patched, nil
	}
	created, err := s.api.CreateAccessProfile(ctx, core.AccessProfile{
		Name:           name,
		Description:    fmt.Sprintf("Provisioning group for proxy entitlement %s", name),
		OwnerID:        ownerID,
		SourceID:       sourceID,
		Requestable:    false,
		EntitlementIDs: underlyingIDs,
	})
	if err != nil {
		return core.AccessProfile{}, fmt.Errorf("create access profile %q: %w", name, err)
	}
	return created, nil
}
