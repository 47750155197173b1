package wbarchive

import "context"

// Rewriter rewrites links inside downloaded content to point at local
// copies instead of the original archive URLs. Not implemented and not
// wired to any flag; kept as a documented extension point per §1.
type Rewriter interface {
	Rewrite(ctx context.Context, path string) error
}
