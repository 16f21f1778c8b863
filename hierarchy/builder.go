// Package hierarchy builds the synthetic proxy-entitlement hierarchy from a
// flat list of raw entitlements whose names follow the
// product-environment-role convention. The build is a pure fold: no network
// calls happen here, side effects (requestable flips, profile sync) are
// applied by the caller over the finished result.
package hierarchy

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/open-iga/proxykit/core"
)

// ParsedName holds the trailing segments of a raw entitlement name. Missing
// segments are empty strings.
type ParsedName struct {
	Product     string
	Environment string
	Role        string
}

// ParseName splits name on "-" and takes the last segment as role, the
// second-to-last as environment, and the third-to-last as product. Extra
// leading segments are ignored; fewer than three segments degrade to empty
// strings for the missing parts.
func ParseName(name string) ParsedName {
	parts := strings.Split(name, "-")
	p := ParsedName{Role: parts[len(parts)-1]}
	if len(parts) >= 2 {
		p.Environment = parts[len(parts)-2]
	}
	if len(parts) >= 3 {
		p.Product = parts[len(parts)-3]
	}
	return p
}

// Hierarchy is the result of one build pass: product nodes, role nodes, and
// leaf records, each in first-seen input order, plus lookup indexes used by
// reconciliation and request resolution.
type Hierarchy struct {
	products []*core.SyntheticNode
	roles    []*core.SyntheticNode
	leaves   []*core.SyntheticNode
	byName   map[string]*core.SyntheticNode
	rawIDs   map[string]struct{}
}

// Build folds an ordered list of raw entitlements into the two synthetic
// levels plus one leaf record per input. Node creation order is first-seen
// order per key; underlying ids are appended in input order. Building twice
// over the same input yields structurally identical results.
func Build(ents []core.RawEntitlement, log *logrus.Entry) *Hierarchy {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Hierarchy{
		byName: make(map[string]*core.SyntheticNode),
		rawIDs: make(map[string]struct{}, len(ents)),
	}
	for _, ent := range ents {
		parsed := ParseName(ent.Name)
		if parsed.Product == "" || parsed.Environment == "" {
			// Technically defined (empty segments) but almost certainly a
			// misconfigured naming convention upstream.
			log.WithField("entitlement", ent.Name).Warn("entitlement name has fewer than three segments")
		}
		h.rawIDs[ent.ID] = struct{}{}

		product := h.upsert(core.ProductNode, parsed.Product, core.SyntheticNode{
			Kind:        core.ProductNode,
			Name:        parsed.Product,
			Description: fmt.Sprintf("All %s entitlements across roles and environments", parsed.Product),
			Product:     parsed.Product,
		})
		product.UnderlyingIDs = append(product.UnderlyingIDs, ent.ID)

		roleKey := parsed.Product + "-" + parsed.Role
		role := h.upsert(core.RoleNode, roleKey, core.SyntheticNode{
			Kind:        core.RoleNode,
			Name:        roleKey,
			Description: fmt.Sprintf("%s %s access across environments", parsed.Product, parsed.Role),
			Product:     parsed.Product,
			Role:        parsed.Role,
			Parent:      parsed.Product,
		})
		role.UnderlyingIDs = append(role.UnderlyingIDs, ent.ID)

		leaf := &core.SyntheticNode{
			Kind:          core.LeafNode,
			Name:          ent.Name,
			Description:   ent.Description,
			Product:       parsed.Product,
			Environment:   parsed.Environment,
			Role:          parsed.Role,
			Parent:        roleKey,
			UnderlyingIDs: []string{ent.ID},
		}
		h.leaves = append(h.leaves, leaf)
		if _, exists := h.byName[leaf.Name]; !exists {
			h.byName[leaf.Name] = leaf
		}
	}
	return h
}

// upsert returns the node registered under name, creating it from proto on
// first sight. Names are the dedup key within one build pass.
func (h *Hierarchy) upsert(kind core.NodeKind, name string, proto core.SyntheticNode) *core.SyntheticNode {
	if node, ok := h.byName[name]; ok {
		return node
	}
	node := &proto
	h.byName[name] = node
	switch kind {
	case core.ProductNode:
		h.products = append(h.products, node)
	case core.RoleNode:
		h.roles = append(h.roles, node)
	}
	return node
}

// Products returns the product nodes in first-seen order.
func (h *Hierarchy) Products() []*core.SyntheticNode { return h.products }

// Roles returns the role nodes in first-seen order.
func (h *Hierarchy) Roles() []*core.SyntheticNode { return h.roles }

// Leaves returns one leaf record per input raw entitlement, order-preserving.
func (h *Hierarchy) Leaves() []*core.SyntheticNode { return h.leaves }

// NodeByName looks up any node (product, role, or leaf) by its proxy name.
func (h *Hierarchy) NodeByName(name string) (*core.SyntheticNode, bool) {
	node, ok := h.byName[name]
	return node, ok
}

// HasRawID reports whether id belongs to one of the raw entitlements this
// hierarchy was built from.
func (h *Hierarchy) HasRawID(id string) bool {
	_, ok := h.rawIDs[id]
	return ok
}

// RawIDCount returns the number of distinct raw entitlement ids seen.
func (h *Hierarchy) RawIDCount() int { return len(h.rawIDs) }
