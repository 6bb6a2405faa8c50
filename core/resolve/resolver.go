package resolve

import (
	"context"

	"tunevault/logger"
	"tunevault/model"
)

// SearchProvider is the external search collaborator: it turns a text
// query into a ranked list of asset references and may fail transiently.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.AssetReference, error)
}

// Resolver normalizes free-text queries into candidate asset references.
type Resolver struct {
	provider SearchProvider
}

// NewResolver creates a resolver over the given provider.
func NewResolver(provider SearchProvider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve calls the provider once and returns up to limit candidates in
// rank order. Provider failure and an empty result set both come back as
// an empty slice: callers treat "search failed" and "nothing found" the
// same way, and only the log keeps the distinction.
func (r *Resolver) Resolve(ctx context.Context, query string, limit int) []model.AssetReference {
	if limit <= 0 {
		limit = 1
	}

	refs, err := r.provider.Search(ctx, query, limit)
	if err != nil {
		logger.Warn("search provider failed",
			logger.String("query", query),
			logger.ErrorField(err))
		return nil
	}
	if len(refs) == 0 {
		logger.Debug("search returned no results", logger.String("query", query))
		return nil
	}
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs
}
