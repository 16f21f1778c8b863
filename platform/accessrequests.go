package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/open-iga/proxykit/core"
)

// accessRequestDTO is the wire shape of an access request submission.
type accessRequestDTO struct {
	RequestedFor   []string           `json:"requestedFor"`
	RequestType    string             `json:"requestType"`
	RequestedItems []requestedItemDTO `json:"requestedItems"`
}

type requestedItemDTO struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Comment string `json:"comment,omitempty"`
}

// SubmitAccessRequest submits one directional access request for a subject.
// The platform accepts requests asynchronously; the returned receipt carries
// the platform-assigned request id when one is provided, otherwise a locally
// generated one.
func (c *Client) SubmitAccessRequest(ctx context.Context, subjectID string, entitlementIDs []string, direction core.RequestDirection, comment string) (core.AccessRequestReceipt, error) {
	body := accessRequestDTO{
		RequestedFor: []string{subjectID},
		RequestType:  string(direction),
	}
	for _, id := range entitlementIDs {
		body.RequestedItems = append(body.RequestedItems, requestedItemDTO{
			Type:    core.AccessTypeEntitlement,
			ID:      id,
			Comment: comment,
		})
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v3/access-requests", nil, "", body, &out); err != nil {
		return core.AccessRequestReceipt{}, err
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	return core.AccessRequestReceipt{
		ID:             out.ID,
		SubjectID:      subjectID,
		Direction:      direction,
		EntitlementIDs: entitlementIDs,
		Comment:        comment,
		SubmittedAt:    time.Now().UTC(),
	}, nil
}
