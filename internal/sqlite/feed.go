package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/blogfeed/internal/blog"
)

const feedPostNamespace = "-fdp"

// Keeps a single batch well under sqlite's bound variable limit.
const feedPostBatchSize = 500

// InsertFeedPosts delivers posts in batches. A pair that is already delivered is skipped,
// which makes fanning out from both the post and the subscription side safe.
func (r Repo) InsertFeedPosts(ctx context.Context, fps []blog.FeedPost) error {
	const q = `INSERT INTO feed_posts (id, post_id, subscription_id, is_read, created_at)
	VALUES (:id, :post_id, :subscription_id, :is_read, :created_at)
	ON CONFLICT(post_id, subscription_id) DO NOTHING;`

	createdAt := now()
	for i := range fps {
		fps[i].ID = uuid.NewString() + feedPostNamespace
		fps[i].IsRead = false
		fps[i].CreatedAt = createdAt
	}

	for start := 0; start < len(fps); start += feedPostBatchSize {
		end := min(start+feedPostBatchSize, len(fps))

		_, err := sqlx.NamedExecContext(ctx, r.ext, q, fps[start:end])
		if cErr := constraintErr(err, "feed post"); cErr != nil {
			return cErr
		}
		if err != nil {
			return fmt.Errorf("error inserting feed posts: %w", err)
		}
	}

	return nil
}

// UserFeedPost looks up a feed post through the subscription that owns it, so only
// the subscriber it was delivered to can see it.
func (r Repo) UserFeedPost(ctx context.Context, id, subscriberID string) (blog.FeedPost, error) {
	const q = `
	SELECT
		fp.id,
		fp.post_id,
		fp.subscription_id,
		fp.is_read,
		fp.created_at
	FROM
		feed_posts fp
		INNER JOIN subscriptions subs ON subs.id = fp.subscription_id
	WHERE
		fp.id = ? AND subs.subscriber_id = ?;
	`

	var fp blog.FeedPost
	err := sqlx.GetContext(ctx, r.ext, &fp, q, id, subscriberID)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.FeedPost{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.FeedPost{}, fmt.Errorf("error fetching feed post: %w", err)
	}

	return fp, nil
}

func (r Repo) MarkFeedPostRead(ctx context.Context, id string) error {
	const q = `UPDATE feed_posts SET is_read = 1 WHERE id = ?;`

	res, err := r.ext.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("error marking feed post read: %w", err)
	}

	return requireAffected(res)
}

// UserFeed lists what has been delivered to subscriberID, newest post first.
func (r Repo) UserFeed(ctx context.Context, subscriberID string, args blog.FeedArgs) ([]blog.FeedItem, error) {
	q := userFeedQuery(subscriberID, args).
		Columns(
			"p.id",
			"p.author_id",
			"p.title",
			"p.body",
			"p.created_at",
			"p.updated_at",
			"fp.id AS feed_post_id",
			"fp.is_read",
			"authors.username AS author_name",
		).
		Join("users authors ON authors.id = p.author_id").
		OrderBy("p.created_at DESC", "p.rowid DESC")
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}
	if args.Offset > 0 {
		// sqlite only accepts OFFSET alongside a LIMIT.
		if args.Limit == 0 {
			q = q.Limit(uint64(1<<63 - 1))
		}
		q = q.Offset(args.Offset)
	}

	query, queryArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error generating SQL query: %s", err)
	}

	items := []blog.FeedItem{}
	if err := sqlx.SelectContext(ctx, r.ext, &items, query, queryArgs...); err != nil {
		return nil, fmt.Errorf("error selecting user feed: %w", err)
	}

	return items, nil
}

// CountUserFeed counts the feed items matching args, ignoring pagination.
func (r Repo) CountUserFeed(ctx context.Context, subscriberID string, args blog.FeedArgs) (int, error) {
	query, queryArgs, err := userFeedQuery(subscriberID, args).Columns("COUNT(*)").ToSql()
	if err != nil {
		return 0, fmt.Errorf("error generating SQL query: %s", err)
	}

	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, query, queryArgs...); err != nil {
		return 0, fmt.Errorf("error counting user feed: %w", err)
	}

	return count, nil
}

// The shared FROM and WHERE of the feed listing and its count.
func userFeedQuery(subscriberID string, args blog.FeedArgs) sq.SelectBuilder {
	where := sq.Eq{
		"subs.subscriber_id": subscriberID,
	}
	if args.UnreadOnly {
		where["fp.is_read"] = false
	}

	return sq.Select().
		From("feed_posts fp").
		Join("subscriptions subs ON subs.id = fp.subscription_id").
		Join("posts p ON p.id = fp.post_id").
		Where(where)
}
