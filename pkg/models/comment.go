package models

import "time"

// Comment is an append-only discussion entry on a record. Root comments have
// an empty ReplyToID; replies reference another comment's ID.
type Comment struct {
	ID          string    `json:"id"`
	Content     string    `json:"content" validate:"required"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
	ReplyToID   string    `json:"reply_to_id,omitempty"`
}

// CommentThread is a root comment with its replies attached.
type CommentThread struct {
	Root    Comment   `json:"root"`
	Replies []Comment `json:"replies"`
}

// BuildThreads reconstructs discussion threads from a flat comment list.
// A reply to a reply is attached to its root ancestor, found by walking the
// ReplyToID chain, so deep chains are flattened into the root's reply list
// rather than dropped. Replies whose chain never reaches a root (dangling
// ReplyToID) are promoted to roots.
func BuildThreads(comments []Comment) []CommentThread {
	byID := make(map[string]Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	rootOf := func(c Comment) (string, bool) {
		seen := make(map[string]bool)

		cur := c
		for cur.ReplyToID != "" {
			if seen[cur.ID] {
				return "", false
			}

			seen[cur.ID] = true

			parent, ok := byID[cur.ReplyToID]
			if !ok {
				return "", false
			}

			cur = parent
		}

		return cur.ID, true
	}

	threads := make([]CommentThread, 0)
	index := make(map[string]int)

	for _, c := range comments {
		if c.ReplyToID != "" {
			continue
		}

		index[c.ID] = len(threads)
		threads = append(threads, CommentThread{Root: c, Replies: make([]Comment, 0)})
	}

	for _, c := range comments {
		if c.ReplyToID == "" {
			continue
		}

		rootID, ok := rootOf(c)
		if !ok {
			index[c.ID] = len(threads)
			threads = append(threads, CommentThread{Root: c, Replies: make([]Comment, 0)})

			continue
		}

		if i, exists := index[rootID]; exists {
			threads[i].Replies = append(threads[i].Replies, c)
		}
	}

	return threads
}
