package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/open-iga/proxykit/core"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithStaticToken("test-token"), WithPageSize(2)}, opts...)
	c, err := New(server.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestListEntitlementsPaginates(t *testing.T) {
	ents := []map[string]any{
		{"id": "e1", "name": "a-prod-x", "requestable": true},
		{"id": "e2", "name": "a-prod-y", "requestable": false},
		{"id": "e3", "name": "b-prod-x", "requestable": true},
	}
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/entitlements", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := offset + limit
		if end > len(ents) {
			end = len(ents)
		}
		if offset > len(ents) {
			offset = len(ents)
		}
		_ = json.NewEncoder(w).Encode(ents[offset:end])
	})

	c := newTestClient(t, mux)
	got, err := c.ListEntitlements(context.Background(), `source.id eq "s1"`)
	if err != nil {
		t.Fatalf("ListEntitlements: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entitlements across pages, got %d", len(got))
	}
	if got[0].ID != "e1" || got[2].ID != "e3" {
		t.Fatalf("unexpected page merge order: %+v", got)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
}

func TestGetEntitlementByName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/entitlements", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "e1", "name": "finance-approver", "source": map[string]string{"id": "s1"},
				"attributes": map[string]any{"ids": []string{"realEntId123"}}},
		})
	})

	c := newTestClient(t, mux)
	ent, found, err := c.GetEntitlementByName(context.Background(), "finance-approver", "s1")
	if err != nil {
		t.Fatalf("GetEntitlementByName: %v", err)
	}
	if !found {
		t.Fatal("expected entitlement to be found")
	}
	if ids := ent.UnderlyingIDs(); len(ids) != 1 || ids[0] != "realEntId123" {
		t.Fatalf("unexpected underlying ids %v", ids)
	}
}

func TestGetEntitlementByNameAbsent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/entitlements", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	c := newTestClient(t, mux)
	_, found, err := c.GetEntitlementByName(context.Background(), "nope", "s1")
	if err != nil {
		t.Fatalf("GetEntitlementByName: %v", err)
	}
	if found {
		t.Fatal("expected absent entitlement")
	}
}

func TestSetEntitlementRequestablePatchBody(t *testing.T) {
	var gotBody []map[string]any
	var gotContentType string
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/entitlements/e1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "e1", "requestable": true})
	})

	c := newTestClient(t, mux)
	ent, err := c.SetEntitlementRequestable(context.Background(), "e1", true)
	if err != nil {
		t.Fatalf("SetEntitlementRequestable: %v", err)
	}
	if !ent.Requestable {
		t.Fatal("expected requestable true")
	}
	if gotContentType != "application/json-patch+json" {
		t.Fatalf("expected json-patch content type, got %q", gotContentType)
	}
	if len(gotBody) != 1 || gotBody[0]["op"] != "replace" || gotBody[0]["path"] != "/requestable" {
		t.Fatalf("unexpected patch body %v", gotBody)
	}
}

func TestSubmitAccessRequestPayload(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/access-requests", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})

	c := newTestClient(t, mux)
	receipt, err := c.SubmitAccessRequest(context.Background(), "u1", []string{"e1", "e2"}, core.GrantAccess, "why")
	if err != nil {
		t.Fatalf("SubmitAccessRequest: %v", err)
	}
	if got["requestType"] != "GRANT_ACCESS" {
		t.Fatalf("unexpected requestType %v", got["requestType"])
	}
	items := got["requestedItems"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 requested items, got %d", len(items))
	}
	if receipt.ID == "" {
		t.Fatal("expected a locally generated receipt id for an empty response")
	}
}

func TestSubmitAccessRequestRemoteError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/access-requests", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})

	c := newTestClient(t, mux)
	_, err := c.SubmitAccessRequest(context.Background(), "u1", nil, core.RevokeAccess, "")
	if !core.IsRemote(err) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	var re *core.RemoteError
	if !errors.As(err, &re) || re.Status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %v", err)
	}
}

func TestSearchSubjectsPaginates(t *testing.T) {
	subjects := []map[string]any{
		{"id": "u1", "name": "ada", "access": []map[string]any{
			{"id": "e1", "name": "a-prod-x", "type": "ENTITLEMENT", "source": map[string]string{"id": "s1"}},
		}},
		{"id": "u2", "name": "bob"},
		{"id": "u3", "name": "cleo"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/search", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		end := req.Offset + req.Limit
		if end > len(subjects) {
			end = len(subjects)
		}
		start := req.Offset
		if start > len(subjects) {
			start = len(subjects)
		}
		_ = json.NewEncoder(w).Encode(subjects[start:end])
	})

	c := newTestClient(t, mux)
	got, err := c.SearchSubjects(context.Background(), `@access(source.id:"s1")`)
	if err != nil {
		t.Fatalf("SearchSubjects: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 subjects, got %d", len(got))
	}
	if len(got[0].Access) != 1 || got[0].Access[0].SourceID != "s1" {
		t.Fatalf("unexpected access items: %+v", got[0].Access)
	}
}

func TestLookupIdentityByName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "u1", "name": "ada"}})
	})

	c := newTestClient(t, mux)
	subject, found, err := c.LookupIdentityByName(context.Background(), "ada")
	if err != nil || !found {
		t.Fatalf("expected ada to resolve, got found=%v err=%v", found, err)
	}
	if subject.ID != "u1" {
		t.Fatalf("unexpected subject %+v", subject)
	}

	_, found, err = c.LookupIdentityByName(context.Background(), "eve")
	if err != nil {
		t.Fatalf("LookupIdentityByName: %v", err)
	}
	if found {
		t.Fatal("expected eve to be absent")
	}
}

func TestAccessProfileRoundTrip(t *testing.T) {
	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/access-profiles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte("[]"))
		case http.MethodPost:
			_ = json.NewDecoder(r.Body).Decode(&created)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "ap-1", "name": created["name"], "requestable": false,
			})
		}
	})

	c := newTestClient(t, mux)
	_, found, err := c.GetAccessProfileByName(context.Background(), "finance")
	if err != nil || found {
		t.Fatalf("expected absent profile, got found=%v err=%v", found, err)
	}
	p, err := c.CreateAccessProfile(context.Background(), core.AccessProfile{
		Name: "finance", OwnerID: "o1", SourceID: "s1", EntitlementIDs: []string{"e1"},
	})
	if err != nil {
		t.Fatalf("CreateAccessProfile: %v", err)
	}
	if p.ID != "ap-1" || p.Requestable {
		t.Fatalf("unexpected created profile %+v", p)
	}
	ents := created["entitlements"].([]any)
	if len(ents) != 1 {
		t.Fatalf("expected one entitlement ref, got %v", created["entitlements"])
	}
}

func TestGetSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/sources/s1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "s1", "name": "Proxy Source"})
	})

	c := newTestClient(t, mux)
	src, err := c.GetSource(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if src.Name != "Proxy Source" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestNewRequiresAuth(t *testing.T) {
	t.Setenv("PROXYKIT_CLIENT_ID", "")
	t.Setenv("PROXYKIT_CLIENT_SECRET", "")
	if _, err := New("http://localhost:9"); err == nil {
		t.Fatal("expected an authentication error")
	}
}
