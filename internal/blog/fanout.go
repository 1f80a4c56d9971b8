package blog

import (
	"context"
	"fmt"
)

// Fan-out keeps feed_posts in step with posts and subscriptions: a feed post exists
// for (post, subscription) exactly when the post's author is the one being followed.
// Both directions run inside the transaction that created the triggering row.

// fanOutPost delivers a new post to every current subscriber of its author.
// The subscriptions it delivered to are returned for notification.
func fanOutPost(ctx context.Context, tx Store, post Post) ([]Subscription, error) {
	subs, err := tx.AuthorSubscriptions(ctx, post.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("error fetching subscriptions to author: %w", err)
	}

	fps := make([]FeedPost, 0, len(subs))
	for _, sub := range subs {
		fps = append(fps, FeedPost{
			PostID:         post.ID,
			SubscriptionID: sub.ID,
		})
	}
	if err := tx.InsertFeedPosts(ctx, fps); err != nil {
		return nil, fmt.Errorf("error delivering post: %w", err)
	}

	return subs, nil
}

// fanOutSubscription back-fills a new subscription with every existing post of the author.
func fanOutSubscription(ctx context.Context, tx Store, sub Subscription) error {
	posts, err := tx.AuthorPosts(ctx, sub.AuthorID)
	if err != nil {
		return fmt.Errorf("error fetching author posts: %w", err)
	}

	fps := make([]FeedPost, 0, len(posts))
	for _, post := range posts {
		fps = append(fps, FeedPost{
			PostID:         post.ID,
			SubscriptionID: sub.ID,
		})
	}
	if err := tx.InsertFeedPosts(ctx, fps); err != nil {
		return fmt.Errorf("error back-filling subscription: %w", err)
	}

	return nil
}
