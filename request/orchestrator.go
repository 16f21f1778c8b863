// Package request turns proxy-entitlement names into approval-gated access
// requests against the identity platform.
package request

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-iga/proxykit/core"
)

// DefaultRetryDelay is the fixed wait before the single retry of a failed
// submission.
const DefaultRetryDelay = 60 * time.Second

// DefaultCommentTemplate is used when no template is configured. The %s verb
// receives the comma-joined list of requested proxy names.
const DefaultCommentTemplate = "Requested via proxy entitlement(s): %s"

// Resolver looks up a raw entitlement by name scoped to one source.
type Resolver interface {
	GetEntitlementByName(ctx context.Context, name, sourceID string) (core.RawEntitlement, bool, error)
}

// Submitter submits an access request to the platform.
type Submitter interface {
	SubmitAccessRequest(ctx context.Context, subjectID string, entitlementIDs []string, direction core.RequestDirection, comment string) (core.AccessRequestReceipt, error)
}

// Orchestrator resolves proxy names to real entitlement ids and submits one
// access request per call, retrying exactly once after a fixed delay.
type Orchestrator struct {
	resolver  Resolver
	submitter Submitter
	auditor   core.RequestAuditor
	sourceID  string
	template  string
	delay     time.Duration
	log       *logrus.Entry
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryDelay overrides the fixed delay before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithCommentTemplate sets the comment template. A %s verb, if present,
// receives the comma-joined requested proxy names.
func WithCommentTemplate(tmpl string) Option {
	return func(o *Orchestrator) {
		if tmpl != "" {
			o.template = tmpl
		}
	}
}

// WithAuditor attaches a best-effort audit sink for accepted requests.
func WithAuditor(a core.RequestAuditor) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

// WithLogger sets a custom logger entry.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// New constructs an Orchestrator for one proxy source.
func New(resolver Resolver, submitter Submitter, sourceID string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:  resolver,
		submitter: submitter,
		sourceID:  sourceID,
		template:  DefaultCommentTemplate,
		delay:     DefaultRetryDelay,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Request resolves proxyNames to the union of their underlying real
// entitlement ids and submits one access request for subjectID in the given
// direction. Names that resolve to no known entitlement contribute nothing
// and are logged at warn level. An empty resolved set is still submitted.
//
// A failed submission is retried exactly once after the fixed delay; a second
// failure propagates to the caller.
func (o *Orchestrator) Request(ctx context.Context, subjectID string, proxyNames []string, direction core.RequestDirection) (core.AccessRequestReceipt, error) {
	ids, err := o.resolve(ctx, proxyNames)
	if err != nil {
		return core.AccessRequestReceipt{}, err
	}
	comment := o.comment(proxyNames)

	receipt, err := o.submitter.SubmitAccessRequest(ctx, subjectID, ids, direction, comment)
	if err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"subject":   subjectID,
			"direction": direction,
		}).Warn("access request submission failed, retrying once")
		select {
		case <-ctx.Done():
			return core.AccessRequestReceipt{}, ctx.Err()
		case <-time.After(o.delay):
		}
		receipt, err = o.submitter.SubmitAccessRequest(ctx, subjectID, ids, direction, comment)
		if err != nil {
			return core.AccessRequestReceipt{}, fmt.Errorf("submit access request: %w", err)
		}
	}

	if o.auditor != nil {
		if err := o.auditor.LogAccessRequest(ctx, receipt); err != nil {
			o.log.WithError(err).Warn("audit write failed")
		}
	}
	return receipt, nil
}

// resolve maps each proxy name to its entitlement's underlying ids and
// returns the deduplicated union in first-seen order. Lookup transport
// failures are fatal; an absent name is tolerated.
func (o *Orchestrator) resolve(ctx context.Context, proxyNames []string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, name := range proxyNames {
		ent, found, err := o.resolver.GetEntitlementByName(ctx, name, o.sourceID)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", name, err)
		}
		if !found {
			o.log.WithField("proxy", name).Warn("requested proxy name resolves to no entitlement")
			continue
		}
		for _, id := range ent.UnderlyingIDs() {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (o *Orchestrator) comment(proxyNames []string) string {
	joined := strings.Join(proxyNames, ", ")
	if strings.Contains(o.template, "%s") {
		return fmt.Sprintf(o.template, joined)
	}
	return o.template + " " + joined
}
