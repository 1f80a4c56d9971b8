package blog

import "context"

type (
	UserStore interface {
		EnsureUser(ctx context.Context, usr User) (User, error)
		User(ctx context.Context, id string) (User, error)
		Users(ctx context.Context, ids []string) ([]User, error)
		// AllUsers lists everyone, most recently joined first.
		AllUsers(ctx context.Context) ([]User, error)
	}

	PostStore interface {
		InsertPost(ctx context.Context, post Post) (Post, error)
		Post(ctx context.Context, id string) (Post, error)
		// UpdatePost only touches the post when it belongs to authorID.
		UpdatePost(ctx context.Context, id, authorID string, in PostInput) (Post, error)
		// DeletePost only deletes the post when it belongs to authorID.
		DeletePost(ctx context.Context, id, authorID string) error
		// AuthorPosts lists an author's posts, newest first.
		AuthorPosts(ctx context.Context, authorID string) ([]Post, error)
	}

	SubscriptionStore interface {
		InsertSubscription(ctx context.Context, sub Subscription) (Subscription, error)
		DeleteSubscription(ctx context.Context, authorID, subscriberID string) error
		// AuthorSubscriptions are the subscriptions following authorID.
		AuthorSubscriptions(ctx context.Context, authorID string) ([]Subscription, error)
		// UserSubscriptions are the subscriptions held by subscriberID.
		UserSubscriptions(ctx context.Context, subscriberID string) ([]Subscription, error)
	}

	FeedStore interface {
		// InsertFeedPosts skips any (post, subscription) pair that is already delivered.
		InsertFeedPosts(ctx context.Context, fps []FeedPost) error
		// UserFeedPost finds a feed post whose subscription is held by subscriberID.
		UserFeedPost(ctx context.Context, id, subscriberID string) (FeedPost, error)
		MarkFeedPostRead(ctx context.Context, id string) error
		UserFeed(ctx context.Context, subscriberID string, args FeedArgs) ([]FeedItem, error)
		CountUserFeed(ctx context.Context, subscriberID string, args FeedArgs) (int, error)
	}

	// Store is everything the service persists.
	Store interface {
		UserStore
		PostStore
		SubscriptionStore
		FeedStore

		// Tx runs fn against a Store bound to a single transaction. The
		// transaction commits when fn returns nil and rolls back otherwise.
		Tx(ctx context.Context, fn func(Store) error) error
	}

	// Notifier delivers new post notifications. Failures are not fatal to callers.
	Notifier interface {
		NotifyNewPost(ctx context.Context, np NewPost) error
	}
)
