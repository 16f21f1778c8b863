// Package reconcile computes a subject's effective proxy-entitlement state
// from two underlying signals: entitlements the subject holds directly on the
// monitored source, and proxy grants previously materialized on the proxy
// source.
package reconcile

import (
	"github.com/open-iga/proxykit/core"
	"github.com/open-iga/proxykit/hierarchy"
)

// HeldSet is the set of proxy-entitlement names a subject effectively holds.
// It carries no ordering; callers needing determinism must sort.
type HeldSet map[string]struct{}

// Names returns the members of the set in unspecified order.
func (s HeldSet) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	return out
}

// Subject computes the proxy names to report as held for one subject, in two
// passes:
//
//  1. Direct holdings: every ENTITLEMENT access item whose id is one of the
//     hierarchy's raw entitlement ids contributes its own name. The leaf
//     proxy name and the raw entitlement name coincide by convention.
//  2. Proxy subsumption: every ENTITLEMENT access item sourced from the proxy
//     source whose name is not already held is resolved to its synthetic
//     node; if the subject directly holds every underlying id of that node,
//     the node's name is added. Partial fulfillment does not count.
//
// An empty result means the subject should not be reported at all.
func Subject(subject core.Subject, h *hierarchy.Hierarchy, proxySourceID string) HeldSet {
	held := make(HeldSet)
	direct := make(map[string]struct{})

	for _, item := range subject.Access {
		if item.Type != core.AccessTypeEntitlement {
			continue
		}
		if h.HasRawID(item.ID) {
			held[item.Name] = struct{}{}
			direct[item.ID] = struct{}{}
		}
	}

	for _, item := range subject.Access {
		if item.Type != core.AccessTypeEntitlement || item.SourceID != proxySourceID {
			continue
		}
		if _, ok := held[item.Name]; ok {
			continue
		}
		node, ok := h.NodeByName(item.Name)
		if !ok {
			continue
		}
		if covered(node.UnderlyingIDs, direct) {
			held[node.Name] = struct{}{}
		}
	}
	return held
}

// covered reports whether every id in ids is present in holdings. A node with
// no members is never emitted by the builder, but an empty list here is
// treated as not covered rather than vacuously satisfied.
func covered(ids []string, holdings map[string]struct{}) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := holdings[id]; !ok {
			return false
		}
	}
	return true
}
