package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-iga/proxykit/core"
)

type fakeResolver struct {
	entitlements map[string]core.RawEntitlement
	err          error
}

func (f *fakeResolver) GetEntitlementByName(_ context.Context, name, _ string) (core.RawEntitlement, bool, error) {
	if f.err != nil {
		return core.RawEntitlement{}, false, f.err
	}
	ent, ok := f.entitlements[name]
	return ent, ok, nil
}

type submission struct {
	subjectID string
	ids       []string
	direction core.RequestDirection
	comment   string
}

type fakeSubmitter struct {
	calls    []submission
	failures int // fail this many leading calls
}

func (f *fakeSubmitter) SubmitAccessRequest(_ context.Context, subjectID string, ids []string, direction core.RequestDirection, comment string) (core.AccessRequestReceipt, error) {
	f.calls = append(f.calls, submission{subjectID, ids, direction, comment})
	if len(f.calls) <= f.failures {
		return core.AccessRequestReceipt{}, &core.RemoteError{Status: 429, Msg: "rate limited"}
	}
	return core.AccessRequestReceipt{
		ID:             "req-1",
		SubjectID:      subjectID,
		Direction:      direction,
		EntitlementIDs: ids,
		Comment:        comment,
	}, nil
}

func proxyEnt(name string, ids ...string) core.RawEntitlement {
	anyIDs := make([]any, len(ids))
	for i, id := range ids {
		anyIDs[i] = id
	}
	return core.RawEntitlement{ID: "proxy-" + name, Name: name, Attributes: map[string]any{"ids": anyIDs}}
}

func TestRequestResolvesUnderlyingIDs(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance-approver": proxyEnt("finance-approver", "realEntId123"),
	}}
	submitter := &fakeSubmitter{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	receipt, err := orch.Request(context.Background(), "u1", []string{"finance-approver"}, core.GrantAccess)
	require.NoError(t, err)
	require.Len(t, submitter.calls, 1)
	require.Equal(t, []string{"realEntId123"}, submitter.calls[0].ids)
	require.Equal(t, core.GrantAccess, submitter.calls[0].direction)
	require.Equal(t, []string{"realEntId123"}, receipt.EntitlementIDs)
}

func TestRequestUnionDeduplicates(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance":          proxyEnt("finance", "e1", "e2"),
		"finance-approver": proxyEnt("finance-approver", "e1"),
	}}
	submitter := &fakeSubmitter{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	_, err := orch.Request(context.Background(), "u1", []string{"finance", "finance-approver"}, core.GrantAccess)
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2"}, submitter.calls[0].ids)
}

func TestRequestToleratesUnresolvableNames(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance-approver": proxyEnt("finance-approver", "e1"),
	}}
	submitter := &fakeSubmitter{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	_, err := orch.Request(context.Background(), "u1", []string{"no-such-proxy", "finance-approver"}, core.GrantAccess)
	require.NoError(t, err)
	require.Equal(t, []string{"e1"}, submitter.calls[0].ids)
}

func TestRequestLookupFailureIsFatal(t *testing.T) {
	resolver := &fakeResolver{err: &core.RemoteError{Status: 500, Msg: "boom"}}
	submitter := &fakeSubmitter{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	_, err := orch.Request(context.Background(), "u1", []string{"finance"}, core.GrantAccess)
	require.Error(t, err)
	require.Empty(t, submitter.calls)
}

func TestRequestEmptyResolvedSetStillSubmitted(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{}}
	submitter := &fakeSubmitter{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	_, err := orch.Request(context.Background(), "u1", []string{"unknown"}, core.RevokeAccess)
	require.NoError(t, err)
	require.Len(t, submitter.calls, 1)
	require.Empty(t, submitter.calls[0].ids)
}

func TestRequestRetriesOnceAfterDelay(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance": proxyEnt("finance", "e1"),
	}}
	submitter := &fakeSubmitter{failures: 1}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(20*time.Millisecond))

	start := time.Now()
	receipt, err := orch.Request(context.Background(), "u1", []string{"finance"}, core.GrantAccess)
	require.NoError(t, err)
	require.Len(t, submitter.calls, 2)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Equal(t, "req-1", receipt.ID)
}

func TestRequestSecondFailurePropagates(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance": proxyEnt("finance", "e1"),
	}}
	submitter := &fakeSubmitter{failures: 2}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	_, err := orch.Request(context.Background(), "u1", []string{"finance"}, core.GrantAccess)
	require.Error(t, err)
	require.True(t, core.IsRemote(err))
	// Exactly one retry, never an unbounded loop.
	require.Len(t, submitter.calls, 2)
}

func TestRequestCancelledDuringRetryDelay(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance": proxyEnt("finance", "e1"),
	}}
	submitter := &fakeSubmitter{failures: 2}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := orch.Request(ctx, "u1", []string{"finance"}, core.GrantAccess)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, submitter.calls, 1)
}

func TestRequestCommentEmbedsProxyNames(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance": proxyEnt("finance", "e1"),
		"hr":      proxyEnt("hr", "e2"),
	}}
	submitter := &fakeSubmitter{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond))

	_, err := orch.Request(context.Background(), "u1", []string{"finance", "hr"}, core.GrantAccess)
	require.NoError(t, err)
	require.Contains(t, submitter.calls[0].comment, "finance, hr")
}

type fakeAuditor struct {
	receipts []core.AccessRequestReceipt
	err      error
}

func (f *fakeAuditor) LogAccessRequest(_ context.Context, r core.AccessRequestReceipt) error {
	f.receipts = append(f.receipts, r)
	return f.err
}

func TestRequestAuditsAcceptedSubmissions(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance": proxyEnt("finance", "e1"),
	}}
	submitter := &fakeSubmitter{}
	auditor := &fakeAuditor{}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond), WithAuditor(auditor))

	_, err := orch.Request(context.Background(), "u1", []string{"finance"}, core.GrantAccess)
	require.NoError(t, err)
	require.Len(t, auditor.receipts, 1)
	require.Equal(t, "u1", auditor.receipts[0].SubjectID)
}

func TestRequestAuditFailureTolerated(t *testing.T) {
	resolver := &fakeResolver{entitlements: map[string]core.RawEntitlement{
		"finance": proxyEnt("finance", "e1"),
	}}
	submitter := &fakeSubmitter{}
	auditor := &fakeAuditor{err: errors.New("sink down")}
	orch := New(resolver, submitter, "src-proxy", WithRetryDelay(time.Millisecond), WithAuditor(auditor))

	_, err := orch.Request(context.Background(), "u1", []string{"finance"}, core.GrantAccess)
	require.NoError(t, err)
}
