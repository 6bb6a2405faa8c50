package resolve

import (
	"context"
	"errors"
	"testing"

	"tunevault/model"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	refs []model.AssetReference
	err  error

	gotQuery string
	gotMax   int
	calls    int
}

func (p *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]model.AssetReference, error) {
	p.calls++
	p.gotQuery = query
	p.gotMax = maxResults
	return p.refs, p.err
}

func TestResolvePreservesProviderOrder(t *testing.T) {
	provider := &fakeProvider{refs: []model.AssetReference{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
	}}
	r := NewResolver(provider)

	refs := r.Resolve(context.Background(), "some song", 2)
	require.Len(t, refs, 2)
	require.Equal(t, "a", refs[0].ID)
	require.Equal(t, "b", refs[1].ID)
	require.Equal(t, 1, provider.calls, "resolver calls the provider exactly once")
	require.Equal(t, "some song", provider.gotQuery)
}

func TestResolveTrimsToLimit(t *testing.T) {
	provider := &fakeProvider{refs: []model.AssetReference{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}}
	r := NewResolver(provider)

	refs := r.Resolve(context.Background(), "q", 1)
	require.Len(t, refs, 1)
	require.Equal(t, "a", refs[0].ID)
}

func TestResolveDefaultsLimitToOne(t *testing.T) {
	provider := &fakeProvider{refs: []model.AssetReference{{ID: "a"}}}
	r := NewResolver(provider)

	r.Resolve(context.Background(), "q", 0)
	require.Equal(t, 1, provider.gotMax)
}

func TestResolveCollapsesFailureAndEmpty(t *testing.T) {
	t.Run("provider failure", func(t *testing.T) {
		r := NewResolver(&fakeProvider{err: errors.New("quota exceeded")})
		require.Empty(t, r.Resolve(context.Background(), "q", 3))
	})

	t.Run("zero results", func(t *testing.T) {
		r := NewResolver(&fakeProvider{})
		require.Empty(t, r.Resolve(context.Background(), "q", 3))
	})
}
