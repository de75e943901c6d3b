// Package remote wraps the document API behind a five-operation client.
// All wire payloads are normalized into the typed Node model at this
// boundary; nothing downstream re-interprets raw response shapes.
package remote

import "context"

// Client is the full surface the engine needs from the document API.
//
// Search and GetChildren are read operations and always safe to retry.
// AppendChildren and UpdateNode must not be blindly retried: an
// unacknowledged success followed by a retry duplicates content. DeleteNode
// is idempotent; deleting an already-deleted node succeeds.
type Client interface {
	// Search returns candidate root nodes matching a free-text query.
	Search(ctx context.Context, query string) ([]Candidate, error)

	// GetChildren lists one page of a node's children. Pass the cursor from
	// the previous page, or "" for the first page.
	GetChildren(ctx context.Context, nodeID, cursor string) (ChildPage, error)

	// AppendChildren creates new child nodes under parentID, after afterID
	// when non-empty, and returns the remote-assigned IDs in order.
	AppendChildren(ctx context.Context, parentID string, payloads []Payload, afterID string) ([]string, error)

	// UpdateNode replaces the node's kind and content.
	UpdateNode(ctx context.Context, nodeID string, payload Payload) error

	// DeleteNode removes a node and its subtree.
	DeleteNode(ctx context.Context, nodeID string) error
}
