package post

import (
	"context"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/model"
	"golang.org/x/sync/errgroup"
)

// CheckBounds rejects tree reads outside [0, max]
func (e *Engine) CheckBounds(depth, limit int) error {
	if depth < 0 || depth > e.maxDepth {
		return apperr.Newf(apperr.KindInvalidInput, "depth must be between 0 and %d", e.maxDepth)
	}
	if limit < 0 || limit > e.maxLimit {
		return apperr.Newf(apperr.KindInvalidInput, "limit must be between 0 and %d", e.maxLimit)
	}
	return nil
}

// GetTree returns the post with up to depth levels of replies, at most
// limit per level. It returns nil when the post does not exist.
func (e *Engine) GetTree(ctx context.Context, id string, limit, depth int) (*model.Thread, error) {
	if err := e.CheckBounds(depth, limit); err != nil {
		return nil, err
	}

	p, err := e.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}

	children, err := e.children(ctx, id, limit, depth, 1)
	if err != nil {
		return nil, err
	}

	t := &model.Thread{Post: *p, Children: children}
	e.observe(t.Count())
	return t, nil
}

// ListForUser returns every root post by authorID with its bounded tree
func (e *Engine) ListForUser(ctx context.Context, authorID string, limit, depth int) ([]*model.Thread, error) {
	if err := e.CheckBounds(depth, limit); err != nil {
		return nil, err
	}

	roots, err := e.repo.ListRoots(ctx, authorID)
	if err != nil {
		return nil, apperr.Storage("list posts", err)
	}

	out := make([]*model.Thread, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range roots {
		g.Go(func() error {
			t, err := e.expand(gctx, rec, limit, depth, 1)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range out {
		e.observe(t.Count())
	}
	return out, nil
}

// children fetches the first limit replies of parentID and expands each of
// them concurrently. Past depthLimit it returns an empty list without
// touching storage. Any failing branch fails the whole call.
func (e *Engine) children(ctx context.Context, parentID string, limit, depthLimit, depth int) ([]*model.Thread, error) {
	if depth > depthLimit {
		return []*model.Thread{}, nil
	}

	recs, err := e.repo.ListChildren(ctx, parentID, limit)
	if err != nil {
		return nil, apperr.Storage("list replies", err)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]*model.Thread, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range recs {
		g.Go(func() error {
			t, err := e.expand(gctx, rec, limit, depthLimit, depth+1)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// expand resolves the author of rec and attaches its replies at depth
func (e *Engine) expand(ctx context.Context, rec *model.PostRecord, limit, depthLimit, depth int) (*model.Thread, error) {
	p, err := e.resolve(ctx, rec)
	if err != nil {
		return nil, err
	}
	children, err := e.children(ctx, rec.ID, limit, depthLimit, depth)
	if err != nil {
		return nil, err
	}
	return &model.Thread{Post: *p, Children: children}, nil
}
