package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-iga/proxykit/core"
)

type fakeAPI struct {
	existing map[string]core.AccessProfile
	getErr   error
	created  []core.AccessProfile
	patched  map[string][]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		existing: make(map[string]core.AccessProfile),
		patched:  make(map[string][]string),
	}
}

func (f *fakeAPI) GetAccessProfileByName(_ context.Context, name string) (core.AccessProfile, bool, error) {
	if f.getErr != nil {
		return core.AccessProfile{}, false, f.getErr
	}
	p, ok := f.existing[name]
	return p, ok, nil
}

func (f *fakeAPI) CreateAccessProfile(_ context.Context, p core.AccessProfile) (core.AccessProfile, error) {
	p.ID = "ap-" + p.Name
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeAPI) PatchAccessProfile(_ context.Context, id string, ids []string, requestable bool) (core.AccessProfile, error) {
	f.patched[id] = ids
	return core.AccessProfile{ID: id, EntitlementIDs: ids, Requestable: requestable}, nil
}

func TestSyncCreatesWhenAbsent(t *testing.T) {
	api := newFakeAPI()
	s := New(api)

	p, err := s.Sync(context.Background(), "finance-approver", "owner-1", "src-1", []string{"e1", "e2"})
	require.NoError(t, err)
	require.Len(t, api.created, 1)
	require.Equal(t, "finance-approver", api.created[0].Name)
	require.Equal(t, "owner-1", api.created[0].OwnerID)
	require.Equal(t, "src-1", api.created[0].SourceID)
	require.False(t, api.created[0].Requestable)
	require.Equal(t, []string{"e1", "e2"}, p.EntitlementIDs)
}

func TestSyncPatchesWhenPresent(t *testing.T) {
	api := newFakeAPI()
	api.existing["finance-approver"] = core.AccessProfile{ID: "ap-9", Name: "finance-approver", Requestable: true}
	s := New(api)

	p, err := s.Sync(context.Background(), "finance-approver", "owner-1", "src-1", []string{"e1"})
	require.NoError(t, err)
	require.Empty(t, api.created)
	require.Equal(t, []string{"e1"}, api.patched["ap-9"])
	// The profile is a provisioning grouping, never directly requestable.
	require.False(t, p.Requestable)
}

func TestSyncLookupErrorPropagates(t *testing.T) {
	api := newFakeAPI()
	api.getErr = &core.RemoteError{Status: 500, Msg: "boom"}
	s := New(api)

	_, err := s.Sync(context.Background(), "finance", "owner-1", "src-1", []string{"e1"})
	require.Error(t, err)
	require.True(t, core.IsRemote(err))
}
