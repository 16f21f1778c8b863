// Package connector implements the host-facing operations of the proxy
// entitlement connector: test-connection, list-entitlements, list-accounts,
// create-account, and update-account. Each operation runs to completion as
// one sequential pass and re-derives all groupings from current platform
// state.
package connector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/open-iga/proxykit/core"
	"github.com/open-iga/proxykit/platform"
	"github.com/open-iga/proxykit/profile"
	"github.com/open-iga/proxykit/request"
)

// API is the platform surface the connector consumes. *platform.Client
// implements it.
type API interface {
	ListEntitlements(ctx context.Context, filters string) ([]core.RawEntitlement, error)
	GetEntitlementByName(ctx context.Context, name, sourceID string) (core.RawEntitlement, bool, error)
	SetEntitlementRequestable(ctx context.Context, id string, value bool) (core.RawEntitlement, error)
	SearchSubjects(ctx context.Context, query string) ([]core.Subject, error)
	LookupIdentityByName(ctx context.Context, name string) (core.Subject, bool, error)
	SubmitAccessRequest(ctx context.Context, subjectID string, entitlementIDs []string, direction core.RequestDirection, comment string) (core.AccessRequestReceipt, error)
	GetAccessProfileByName(ctx context.Context, name string) (core.AccessProfile, bool, error)
	CreateAccessProfile(ctx context.Context, p core.AccessProfile) (core.AccessProfile, error)
	PatchAccessProfile(ctx context.Context, id string, entitlementIDs []string, requestable bool) (core.AccessProfile, error)
	GetSource(ctx context.Context, id string) (platform.Source, error)
	Token() (string, error)
}

// Connector ties the platform client and the core engine together under one
// configuration.
type Connector struct {
	api      API
	cfg      Config
	auditor  core.RequestAuditor
	orch     *request.Orchestrator
	profiles *profile.Synchronizer
	log      *logrus.Entry
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets a custom logger entry.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Connector) {
		if log != nil {
			c.log = log
		}
	}
}

// WithAuditor attaches a best-effort audit sink for accepted access requests.
func WithAuditor(a core.RequestAuditor) Option {
	return func(c *Connector) { c.auditor = a }
}

// New constructs a Connector from a validated configuration.
func New(api API, cfg Config, opts ...Option) *Connector {
	c := &Connector{
		api:      api,
		cfg:      cfg,
		profiles: profile.New(api),
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.orch = request.New(api, api, cfg.SourceID,
		request.WithRetryDelay(cfg.RetryDelay()),
		request.WithCommentTemplate(cfg.RequestComment),
		request.WithLogger(c.log),
		request.WithAuditor(c.auditor),
	)
	return c
}

// TestConnection succeeds iff a lightweight source read succeeds. On success
// it logs the access token's tenant and expiry at debug level.
func (c *Connector) TestConnection(ctx context.Context) error {
	src, err := c.api.GetSource(ctx, c.cfg.SourceID)
	if err != nil {
		return fmt.Errorf("test connection: %w", err)
	}
	c.log.WithField("source", src.Name).Debug("source reachable")

	if token, err := c.api.Token(); err == nil {
		if claims, err := platform.InspectToken(token); err == nil {
			c.log.WithFields(logrus.Fields{
				"org":    claims.Org,
				"expiry": claims.Expiry,
			}).Debug("access token")
		}
	}
	return nil
}
