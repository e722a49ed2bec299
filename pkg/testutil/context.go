package testutil

import (
	"net/http"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/requestcontext"
)

// WithCaller adds a caller account to the request context.
// This simulates what the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, caller id.AccountID) *http.Request {
	ctx := requestcontext.WithCallerID(req.Context(), caller)
	return req.WithContext(ctx)
}
