// Package blog holds the domain of the service: authors write posts, readers
// subscribe to authors, and every post gets fanned out into the feed of each
// subscriber as a [FeedPost].
package blog

import (
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

type (
	// User is anyone who signed in. Every user is also an author with a blog.
	User struct {
		ID        string    `db:"id"`
		GithubID  string    `db:"github_id"`
		Username  string    `db:"username"`
		Email     string    `db:"email"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// Author is a user as seen from the blog list, flagged with whether the viewer follows them.
	Author struct {
		User

		IsSubscribed bool
	}

	// Post is an entry on an author's blog. Titles are unique per author.
	Post struct {
		ID        string    `db:"id"`
		AuthorID  string    `db:"author_id"`
		Title     string    `db:"title"`
		Body      string    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// Subscription is a subscriber following an author's blog.
	Subscription struct {
		ID           string    `db:"id"`
		AuthorID     string    `db:"author_id"`
		SubscriberID string    `db:"subscriber_id"`
		CreatedAt    time.Time `db:"created_at"`
	}

	// FeedPost is the delivery of a post to one subscription.
	FeedPost struct {
		ID             string    `db:"id"`
		PostID         string    `db:"post_id"`
		SubscriptionID string    `db:"subscription_id"`
		IsRead         bool      `db:"is_read"`
		CreatedAt      time.Time `db:"created_at"`
	}

	// FeedItem is a row of a reader's feed: the delivery joined with its post.
	FeedItem struct {
		Post

		FeedPostID string `db:"feed_post_id"`
		IsRead     bool   `db:"is_read"`
		AuthorName string `db:"author_name"`
	}

	// FeedArgs narrows down a feed listing.
	FeedArgs struct {
		UnreadOnly bool
		Limit      uint64
		Offset     uint64
	}

	// PostInput is what an author submits when writing or editing a post.
	PostInput struct {
		Title string
		Body  string
	}

	// NewPost describes a freshly created post for the people who should hear about it.
	NewPost struct {
		PostID     string
		Title      string
		AuthorName string
		Recipients []string
	}
)
