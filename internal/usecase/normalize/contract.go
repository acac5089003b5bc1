package normalize

import "context"

// Rewriter asks an external model to rewrite a compound query. The returned
// string is raw model output; the normalizer owns all validation and
// fallback, so implementations never need to sanitize.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}
