package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/open-iga/proxykit/core"
)

// accessProfileDTO is the wire shape of an access profile.
type accessProfileDTO struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Owner        refDTO   `json:"owner"`
	Source       refDTO   `json:"source"`
	Requestable  bool     `json:"requestable"`
	Entitlements []refDTO `json:"entitlements"`
}

func (d accessProfileDTO) toCore() core.AccessProfile {
	p := core.AccessProfile{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		OwnerID:     d.Owner.ID,
		SourceID:    d.Source.ID,
		Requestable: d.Requestable,
	}
	for _, ref := range d.Entitlements {
		p.EntitlementIDs = append(p.EntitlementIDs, ref.ID)
	}
	return p
}

func entitlementRefs(ids []string) []refDTO {
	refs := make([]refDTO, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, refDTO{ID: id, Type: core.AccessTypeEntitlement})
	}
	return refs
}

// GetAccessProfileByName looks up one access profile by exact, case-sensitive
// name. The second return is false when no profile matches.
func (c *Client) GetAccessProfileByName(ctx context.Context, name string) (core.AccessProfile, bool, error) {
	query := url.Values{}
	query.Set("filters", fmt.Sprintf("name eq %q", name))

	var page []accessProfileDTO
	if err := c.do(ctx, http.MethodGet, "/v3/access-profiles", query, "", nil, &page); err != nil {
		return core.AccessProfile{}, false, err
	}
	for _, d := range page {
		if d.Name == name {
			return d.toCore(), true, nil
		}
	}
	return core.AccessProfile{}, false, nil
}

// CreateAccessProfile creates a new access profile.
func (c *Client) CreateAccessProfile(ctx context.Context, p core.AccessProfile) (core.AccessProfile, error) {
	body := accessProfileDTO{
		Name:         p.Name,
		Description:  p.Description,
		Owner:        refDTO{ID: p.OwnerID, Type: "IDENTITY"},
		Source:       refDTO{ID: p.SourceID},
		Requestable:  p.Requestable,
		Entitlements: entitlementRefs(p.EntitlementIDs),
	}
	var out accessProfileDTO
	if err := c.do(ctx, http.MethodPost, "/v3/access-profiles", nil, "", body, &out); err != nil {
		return core.AccessProfile{}, err
	}
	return out.toCore(), nil
}

// PatchAccessProfile replaces an existing profile's entitlement membership
// and requestable flag.
func (c *Client) PatchAccessProfile(ctx context.Context, id string, entitlementIDs []string, requestable bool) (core.AccessProfile, error) {
	patch := []jsonPatchOp{
		{Op: "replace", Path: "/entitlements", Value: entitlementRefs(entitlementIDs)},
		{Op: "replace", Path: "/requestable", Value: requestable},
	}
	var out accessProfileDTO
	if err := c.do(ctx, http.MethodPatch, "/v3/access-profiles/"+id, nil, "application/json-patch+json", patch, &out); err != nil {
		return core.AccessProfile{}, err
	}
	return out.toCore(), nil
}
