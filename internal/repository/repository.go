// Package repository implements data access for the community domain on top
// of the document store contract. Repositories own the write batches that keep
// denormalized counters (likes, comments, views, user activity stats) moving
// alongside the records they count.
package repository

import (
	"context"

	"catnip/internal/docstore"
)

// Collection names.
const (
	CollectionPosts    = "posts"
	CollectionComments = "comments"
	CollectionUsers    = "users"
	CollectionCats     = "cats"
	CollectionEmotions = "emotions"
)

// Schema returns the collection configuration both store adapters are opened
// with: posts sort by their engagement counters, and like membership on posts
// and comments has set semantics.
func Schema() docstore.Schema {
	return docstore.Schema{
		CollectionPosts: {
			SortFields: []string{"likes", "comments", "views"},
			SetFields:  []string{"likedBy"},
		},
		CollectionComments: {
			SetFields: []string{"likedBy"},
		},
		CollectionUsers:    {},
		CollectionCats:     {},
		CollectionEmotions: {},
	}
}

const listChunkSize = 100

// listAll drains a query page by page. Used for unbounded reads like a post's
// comment thread or a user's companions.
func listAll(ctx context.Context, store docstore.Store, collection string, q docstore.Query) ([]docstore.Document, error) {
	q.Limit = listChunkSize
	var docs []docstore.Document
	for {
		page, err := store.Query(ctx, collection, q)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page.Docs...)
		if page.NextCursor == "" {
			return docs, nil
		}
		q.Cursor = page.NextCursor
	}
}
