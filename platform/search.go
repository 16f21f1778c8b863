package platform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/open-iga/proxykit/core"
)

// searchRequest is the wire shape of a search-index query. The query language
// itself is the platform's and opaque to this library.
type searchRequest struct {
	Indices []string    `json:"indices"`
	Query   searchQuery `json:"query"`
	Fields  []string    `json:"queryResultFilter,omitempty"`
	Offset  int         `json:"offset"`
	Limit   int         `json:"limit"`
}

type searchQuery struct {
	Query string `json:"query"`
}

// identityDTO is the wire shape of one identity search hit.
type identityDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Access []accessItemDTO `json:"access"`
}

type accessItemDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source refDTO `json:"source"`
}

func (d identityDTO) toCore() core.Subject {
	s := core.Subject{ID: d.ID, Name: d.Name}
	for _, item := range d.Access {
		s.Access = append(s.Access, core.AccessItem{
			ID:       item.ID,
			Name:     item.Name,
			Type:     item.Type,
			SourceID: item.Source.ID,
		})
	}
	return s
}

// SearchSubjects runs an identity-index query and returns every hit with its
// access items, walking offset pagination until a short page.
func (c *Client) SearchSubjects(ctx context.Context, query string) ([]core.Subject, error) {
	var all []core.Subject
	for offset := 0; ; offset += c.pageSize {
		req := searchRequest{
			Indices: []string{"identities"},
			Query:   searchQuery{Query: query},
			Fields:  []string{"id", "name", "access"},
			Offset:  offset,
			Limit:   c.pageSize,
		}
		var page []identityDTO
		if err := c.do(ctx, http.MethodPost, "/v3/search", nil, "", req, &page); err != nil {
			return nil, err
		}
		for _, d := range page {
			all = append(all, d.toCore())
		}
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}

// LookupIdentityByName resolves one identity by its unique name. The second
// return is false when no identity matches exactly.
func (c *Client) LookupIdentityByName(ctx context.Context, name string) (core.Subject, bool, error) {
	subjects, err := c.SearchSubjects(ctx, fmt.Sprintf("name:%q", name))
	if err != nil {
		return core.Subject{}, false, err
	}
	for _, s := range subjects {
		if s.Name == name {
			return s, true, nil
		}
	}
	return core.Subject{}, false, nil
}
