package connector

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-iga/proxykit/core"
	"github.com/open-iga/proxykit/hierarchy"
	"github.com/open-iga/proxykit/reconcile"
)

// AccountRecord is the host-facing shape of one subject's account.
type AccountRecord struct {
	Identity   string            `json:"identity"`
	UID        string            `json:"uid"`
	Attributes AccountAttributes `json:"attributes"`
}

// AccountAttributes carries the account's reported attributes.
type AccountAttributes struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Entitlements []string `json:"entitlements"`
}

// ChangeOp is the kind of one account change in an update.
type ChangeOp string

const (
	ChangeAdd    ChangeOp = "Add"
	ChangeRemove ChangeOp = "Remove"
	ChangeSet    ChangeOp = "Set"
)

// Change is one requested account modification.
type Change struct {
	Op    ChangeOp `json:"op"`
	Value string   `json:"value"`
}

// CreateAccountInput is the host's create-account payload.
type CreateAccountInput struct {
	Identity   string            `json:"identity"`
	Attributes AccountAttributes `json:"attributes"`
}

// UpdateAccountInput is the host's update-account payload. Entitlements
// carries the account's current proxy entitlements before the update.
type UpdateAccountInput struct {
	Identity     string   `json:"identity"`
	Entitlements []string `json:"entitlements"`
	Changes      []Change `json:"changes"`
}

// ListAccounts reconciles every subject matched by the configured identity
// query against the current hierarchy and emits one account record per
// subject with a non-empty held set. Entitlement names are sorted for
// deterministic emission.
func (c *Connector) ListAccounts(ctx context.Context) ([]AccountRecord, error) {
	raws, err := c.api.ListEntitlements(ctx, c.cfg.EntitlementFilter)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	h := hierarchy.Build(raws, c.log)

	subjects, err := c.api.SearchSubjects(ctx, c.cfg.IdentitySearchQuery)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var records []AccountRecord
	for _, subject := range subjects {
		held := reconcile.Subject(subject, h, c.cfg.SourceID)
		if len(held) == 0 {
			continue
		}
		names := held.Names()
		sort.Strings(names)
		records = append(records, AccountRecord{
			Identity: subject.Name,
			UID:      subject.ID,
			Attributes: AccountAttributes{
				ID:           subject.ID,
				Name:         subject.Name,
				Entitlements: names,
			},
		})
	}
	return records, nil
}

// CreateAccount resolves the identity by name, submits one grant access
// request for the requested proxy entitlements, and echoes the account
// record. The grant itself is approval-gated on the platform; the echoed
// entitlements reflect the request, not a confirmed state.
func (c *Connector) CreateAccount(ctx context.Context, in CreateAccountInput) (AccountRecord, error) {
	name := in.Attributes.Name
	if name == "" {
		name = in.Identity
	}
	subject, found, err := c.api.LookupIdentityByName(ctx, name)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("create account: %w", err)
	}
	if !found {
		return AccountRecord{}, &core.NotFoundError{Kind: "identity", Name: name}
	}

	if _, err := c.orch.Request(ctx, subject.ID, in.Attributes.Entitlements, core.GrantAccess); err != nil {
		return AccountRecord{}, fmt.Errorf("create account: %w", err)
	}
	return AccountRecord{
		Identity: subject.Name,
		UID:      subject.ID,
		Attributes: AccountAttributes{
			ID:           subject.ID,
			Name:         subject.Name,
			Entitlements: dedup(in.Attributes.Entitlements),
		},
	}, nil
}

// UpdateAccount validates the change list (Set is unsupported and rejected
// before any network call), resolves the subject from the existing account,
// submits one access request per change (grant for Add, revoke for Remove),
// and emits the account with entitlements recomputed as
// (existing + added) - removed, deduplicated.
func (c *Connector) UpdateAccount(ctx context.Context, in UpdateAccountInput) (AccountRecord, error) {
	for _, change := range in.Changes {
		switch change.Op {
		case ChangeAdd, ChangeRemove:
		case ChangeSet:
			return AccountRecord{}, &core.ValidationError{Msg: "change op Set is not supported"}
		default:
			return AccountRecord{}, &core.ValidationError{Msg: fmt.Sprintf("unknown change op %q", change.Op)}
		}
	}

	subject, found, err := c.api.LookupIdentityByName(ctx, in.Identity)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("update account: %w", err)
	}
	if !found {
		return AccountRecord{}, &core.NotFoundError{Kind: "identity", Name: in.Identity}
	}

	entitlements := dedup(in.Entitlements)
	for _, change := range in.Changes {
		direction := core.GrantAccess
		if change.Op == ChangeRemove {
			direction = core.RevokeAccess
		}
		if _, err := c.orch.Request(ctx, subject.ID, []string{change.Value}, direction); err != nil {
			return AccountRecord{}, fmt.Errorf("update account: %w", err)
		}
		if change.Op == ChangeAdd {
			entitlements = appendUnique(entitlements, change.Value)
		} else {
			entitlements = remove(entitlements, change.Value)
		}
	}

	return AccountRecord{
		Identity: subject.Name,
		UID:      subject.ID,
		Attributes: AccountAttributes{
			ID:           subject.ID,
			Name:         subject.Name,
			Entitlements: entitlements,
		},
	}, nil
}

func dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func remove(values []string, v string) []string {
	out := values[:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
