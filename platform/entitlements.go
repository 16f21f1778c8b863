package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/open-iga/proxykit/core"
)

// entitlementDTO is the wire shape of an entitlement.
type entitlementDTO struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Requestable bool           `json:"requestable"`
	Source      refDTO         `json:"source"`
	Attributes  map[string]any `json:"attributes"`
}

type refDTO struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

func (d entitlementDTO) toCore() core.RawEntitlement {
	return core.RawEntitlement{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Requestable: d.Requestable,
		SourceID:    d.Source.ID,
		Attributes:  d.Attributes,
	}
}

// ListEntitlements returns every entitlement matching the platform filter
// expression, walking offset pagination until a short page.
func (c *Client) ListEntitlements(ctx context.Context, filters string) ([]core.RawEntitlement, error) {
	var all []core.RawEntitlement
	for offset := 0; ; offset += c.pageSize {
		query := url.Values{}
		if filters != "" {
			query.Set("filters", filters)
		}
		query.Set("sorters", "name")
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(c.pageSize))

		var page []entitlementDTO
		if err := c.do(ctx, http.MethodGet, "/v3/entitlements", query, "", nil, &page); err != nil {
			return nil, err
		}
		for _, d := range page {
			all = append(all, d.toCore())
		}
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}

// GetEntitlementByName looks up one entitlement by exact name scoped to a
// source. The second return is false when no entitlement matches.
func (c *Client) GetEntitlementByName(ctx context.Context, name, sourceID string) (core.RawEntitlement, bool, error) {
	filter := fmt.Sprintf("name eq %q and source.id eq %q", name, sourceID)
	query := url.Values{}
	query.Set("filters", filter)
	query.Set("limit", strconv.Itoa(c.pageSize))

	var page []entitlementDTO
	if err := c.do(ctx, http.MethodGet, "/v3/entitlements", query, "", nil, &page); err != nil {
		return core.RawEntitlement{}, false, err
	}
	for _, d := range page {
		if d.Name == name {
			return d.toCore(), true, nil
		}
	}
	return core.RawEntitlement{}, false, nil
}

// jsonPatchOp is one RFC 6902 patch operation.
type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// SetEntitlementRequestable patches one entitlement's requestable flag.
func (c *Client) SetEntitlementRequestable(ctx context.Context, id string, value bool) (core.RawEntitlement, error) {
	patch := []jsonPatchOp{{Op: "replace", Path: "/requestable", Value: value}}
	var out entitlementDTO
	err := c.do(ctx, http.MethodPatch, "/v3/entitlements/"+id, nil, "application/json-patch+json", patch, &out)
	if err != nil {
		return core.RawEntitlement{}, err
	}
	return out.toCore(), nil
}
