// Package walker discovers the current shape of a remote document. Starting
// from a search query it breadth-first traverses the node hierarchy,
// following pagination cursors to exhaustion, and produces the NodeIndex the
// matcher and reconciler operate on. Targets may sit under containers
// (collapsible headings, column lists), so traversal always descends the
// full tree rather than probing one level.
package walker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pagesync/internal/remote"
)

// ErrRootNotFound means the root query resolved to no candidates.
var ErrRootNotFound = errors.New("root query matched no documents")

// ErrPageLimit guards against malformed responses yielding endless cursors.
var ErrPageLimit = errors.New("pagination page limit exceeded")

// Config controls traversal behavior.
type Config struct {
	// FetchFanout bounds concurrent children fetches for sibling nodes.
	FetchFanout int
	// MaxPagesPerNode caps continuation pages followed for a single node.
	MaxPagesPerNode int
	Retry           remote.RetryConfig
}

// DefaultConfig returns the traversal defaults.
func DefaultConfig() Config {
	return Config{
		FetchFanout:     6,
		MaxPagesPerNode: 512,
		Retry:           remote.DefaultRetryConfig(),
	}
}

// Walker builds NodeIndex snapshots. Each document reconciliation gets its
// own Walker; instances share nothing.
type Walker struct {
	client remote.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a Walker over the given client.
func New(client remote.Client, cfg Config, logger *zap.Logger) *Walker {
	if cfg.FetchFanout <= 0 {
		cfg.FetchFanout = DefaultConfig().FetchFanout
	}
	if cfg.MaxPagesPerNode <= 0 {
		cfg.MaxPagesPerNode = DefaultConfig().MaxPagesPerNode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{client: client, cfg: cfg, logger: logger}
}

// Discover resolves rootQuery and walks the document breadth-first into a
// fresh NodeIndex. Children fetches for nodes on the same level run with
// bounded concurrency; every outstanding fetch is joined before the index is
// returned, so the result is one consistent snapshot.
func (w *Walker) Discover(ctx context.Context, rootQuery string) (*NodeIndex, error) {
	rootID, err := w.resolveRoot(ctx, rootQuery)
	if err != nil {
		return nil, err
	}

	ix := newNodeIndex(rootID)
	frontier := []string{rootID}

	for len(frontier) > 0 {
		results := make([][]*remote.Node, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.cfg.FetchFanout)

		for i, nodeID := range frontier {
			i, nodeID := i, nodeID
			g.Go(func() error {
				children, err := w.fetchAllChildren(gctx, nodeID)
				if err != nil {
					return err
				}
				results[i] = children
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []string
		for i, nodeID := range frontier {
			for _, child := range results[i] {
				if !ix.add(nodeID, child) {
					// Trees should not repeat IDs; malformed responses have
					// been observed doing so.
					w.logger.Warn("duplicate node id in listing",
						zap.String("node", child.ID),
						zap.String("parent", nodeID))
					continue
				}
				child.ChildrenFetched = !child.HasChildren
				if child.HasChildren {
					next = append(next, child.ID)
				}
			}
		}
		frontier = next
	}

	w.logger.Debug("discovery complete",
		zap.String("root", rootID),
		zap.Int("nodes", ix.Len()))
	return ix, nil
}

func (w *Walker) resolveRoot(ctx context.Context, rootQuery string) (string, error) {
	var candidates []remote.Candidate
	err := remote.WithRetry(ctx, w.cfg.Retry, "search", func(ctx context.Context) error {
		var err error
		candidates, err = w.client.Search(ctx, rootQuery)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", rootQuery, err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %q", ErrRootNotFound, rootQuery)
	}
	if len(candidates) > 1 {
		w.logger.Warn("root query matched multiple documents, using first",
			zap.String("query", rootQuery),
			zap.Int("candidates", len(candidates)))
	}
	return candidates[0].ID, nil
}

// fetchAllChildren follows continuation cursors until the listing completes.
func (w *Walker) fetchAllChildren(ctx context.Context, nodeID string) ([]*remote.Node, error) {
	var out []*remote.Node
	cursor := ""

	for pages := 0; ; pages++ {
		if pages >= w.cfg.MaxPagesPerNode {
			return nil, fmt.Errorf("%w: node %s after %d pages", ErrPageLimit, nodeID, pages)
		}

		var page remote.ChildPage
		err := remote.WithRetry(ctx, w.cfg.Retry, "get_children", func(ctx context.Context) error {
			var err error
			page, err = w.client.GetChildren(ctx, nodeID, cursor)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch children of %s: %w", nodeID, err)
		}

		out = append(out, page.Children...)
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}
