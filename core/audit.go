package core

import (
	"context"
)

// RequestAuditor records accepted access requests to an external sink (e.g.,
// Postgres). Implementations should be non-blocking and best-effort: a failed
// audit write never fails the request that triggered it.
type RequestAuditor interface {
	LogAccessRequest(ctx context.Context, receipt AccessRequestReceipt) error
}
