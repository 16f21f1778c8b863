package platform

import (
	"context"
	"net/http"
)

// Source describes a monitored source system.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// GetSource fetches one source by id. It doubles as the lightweight read used
// by connection testing.
func (c *Client) GetSource(ctx context.Context, id string) (Source, error) {
	var out Source
	if err := c.do(ctx, http.MethodGet, "/v3/sources/"+id, nil, "", nil, &out); err != nil {
		return Source{}, err
	}
	return out, nil
}
