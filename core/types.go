package core

import "time"

// AccessTypeEntitlement is the access-item type for entitlement grants as
// reported by the identity platform's search index.
const AccessTypeEntitlement = "ENTITLEMENT"

// RawEntitlement is one real entitlement on a monitored source. It is created
// and destroyed by the source system; this library observes it and may flip
// Requestable from false to true, never the reverse.
type RawEntitlement struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Requestable bool           `json:"requestable"`
	SourceID    string         `json:"sourceId,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// UnderlyingIDs reads the "ids" attribute carried by proxy entitlements: the
// list of real entitlement ids the proxy stands in for. A missing or malformed
// attribute yields nil.
func (e RawEntitlement) UnderlyingIDs() []string {
	raw, ok := e.Attributes["ids"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// NodeKind distinguishes the three synthetic levels of the proxy hierarchy.
type NodeKind string

const (
	ProductNode NodeKind = "product"
	RoleNode    NodeKind = "role"
	LeafNode    NodeKind = "entitlement"
)

// SyntheticNode is a proxy entitlement representing a group of raw
// entitlements. Name doubles as the stable identity: two nodes with equal
// names are the same node. UnderlyingIDs is append-only during a build pass
// and never empty once the node is emitted.
type SyntheticNode struct {
	Kind          NodeKind
	Name          string
	Description   string
	Product       string
	Environment   string // leaf nodes only
	Role          string // empty for product nodes
	Parent        string // role node's parent is its product; product has none
	UnderlyingIDs []string
}

// AccessItem is one entry of a subject's current access, as reported by the
// platform's identity index.
type AccessItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	SourceID string `json:"sourceId,omitempty"`
}

// Subject is an identity on the platform with its currently-held access.
type Subject struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Access []AccessItem `json:"access,omitempty"`
}

// RequestDirection is the direction of an access request.
type RequestDirection string

const (
	GrantAccess  RequestDirection = "GRANT_ACCESS"
	RevokeAccess RequestDirection = "REVOKE_ACCESS"
)

// AccessRequestReceipt is returned once the platform accepts an access
// request. Approval outcome is not tracked here; the request is
// fire-and-forget after acceptance.
type AccessRequestReceipt struct {
	ID             string
	SubjectID      string
	Direction      RequestDirection
	EntitlementIDs []string
	Comment        string
	SubmittedAt    time.Time
}

// AccessProfile is a materialized grouping object on the platform, keyed by
// name, owning a membership list of raw entitlement references.
type AccessProfile struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	OwnerID        string   `json:"ownerId"`
	SourceID       string   `json:"sourceId"`
	Requestable    bool     `json:"requestable"`
	EntitlementIDs []string `json:"entitlementIds"`
}
