package connector

import (
	"context"
	"fmt"

	"github.com/open-iga/proxykit/core"
	"github.com/open-iga/proxykit/hierarchy"
)

// EntitlementRecord is the host-facing shape of one emitted entitlement.
type EntitlementRecord struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Attributes  map[string]any `json:"attributes"`
}

// ListEntitlements lists the raw entitlements matching the configured filter,
// builds the synthetic hierarchy, applies the side-effect stage (requestable
// flips and optional access-profile sync, both catch-log-continue), and emits
// product nodes, then role nodes, then leaf records.
func (c *Connector) ListEntitlements(ctx context.Context) ([]EntitlementRecord, error) {
	raws, err := c.api.ListEntitlements(ctx, c.cfg.EntitlementFilter)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	h := hierarchy.Build(raws, c.log)

	c.markRequestable(ctx, raws)
	if c.cfg.SyncAccessProfiles {
		c.syncProfiles(ctx, h)
	}

	var records []EntitlementRecord
	for _, node := range h.Products() {
		records = append(records, nodeRecord(node, node.Name))
	}
	for _, node := range h.Roles() {
		records = append(records, nodeRecord(node, node.Name))
	}
	for _, leaf := range h.Leaves() {
		records = append(records, nodeRecord(leaf, leaf.UnderlyingIDs[0]))
	}
	return records, nil
}

// markRequestable flips requestable on every raw entitlement that is not yet
// requestable. Re-marking an already-requestable entitlement is never
// attempted. A failed flip is logged and the pass continues; the failing
// entitlement stays part of the hierarchy regardless.
func (c *Connector) markRequestable(ctx context.Context, raws []core.RawEntitlement) {
	for _, ent := range raws {
		if ent.Requestable {
			continue
		}
		if _, err := c.api.SetEntitlementRequestable(ctx, ent.ID, true); err != nil {
			c.log.WithError(err).WithField("entitlement", ent.Name).Warn("failed to mark entitlement requestable")
		}
	}
}

// syncProfiles materializes one access profile per hierarchy node, products
// first, then roles, then leaves. One profile failing to sync never prevents
// the others.
func (c *Connector) syncProfiles(ctx context.Context, h *hierarchy.Hierarchy) {
	nodes := make([]*core.SyntheticNode, 0, len(h.Products())+len(h.Roles())+len(h.Leaves()))
	nodes = append(nodes, h.Products()...)
	nodes = append(nodes, h.Roles()...)
	nodes = append(nodes, h.Leaves()...)
	for _, node := range nodes {
		if _, err := c.profiles.Sync(ctx, node.Name, c.cfg.SourceOwnerID, c.cfg.SourceID, node.UnderlyingIDs); err != nil {
			c.log.WithError(err).WithField("profile", node.Name).Warn("access profile sync failed")
		}
	}
}

func nodeRecord(node *core.SyntheticNode, id string) EntitlementRecord {
	attrs := map[string]any{
		"type":    string(node.Kind),
		"product": node.Product,
		"ids":     node.UnderlyingIDs,
	}
	if node.Role != "" {
		attrs["role"] = node.Role
	}
	if node.Environment != "" {
		attrs["environment"] = node.Environment
	}
	if node.Parent != "" {
		attrs["parent"] = node.Parent
	}
	return EntitlementRecord{
		ID:          id,
		Name:        node.Name,
		Description: node.Description,
		Attributes:  attrs,
	}
}
