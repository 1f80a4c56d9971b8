package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	blogerrs "github.com/jdholdren/blogfeed/internal/errors"
)

const notifyTimeout = 10 * time.Second

// Service is the set of operations users perform against blogs, subscriptions and feeds.
type Service struct {
	store    Store
	notifier Notifier

	sending *sync.WaitGroup // Notifications still going out
}

func NewService(store Store, notifier Notifier) Service {
	return Service{
		store:    store,
		notifier: notifier,
		sending:  &sync.WaitGroup{},
	}
}

// Wait blocks until every notification that has been started is done sending.
func (s Service) Wait() {
	s.sending.Wait()
}

func (s Service) EnsureUser(ctx context.Context, usr User) (User, error) {
	return s.store.EnsureUser(ctx, usr)
}

func (s Service) User(ctx context.Context, id string) (User, error) {
	return s.store.User(ctx, id)
}

// Authors lists every blog, flagged with whether viewerID is subscribed to it.
func (s Service) Authors(ctx context.Context, viewerID string) ([]Author, error) {
	var (
		users []User
		subs  []Subscription
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.store.AllUsers(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.store.UserSubscriptions(gCtx, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error listing authors: %w", err)
	}

	following := make(map[string]bool, len(subs))
	for _, sub := range subs {
		following[sub.AuthorID] = true
	}

	authors := make([]Author, 0, len(users))
	for _, usr := range users {
		authors = append(authors, Author{
			User:         usr,
			IsSubscribed: following[usr.ID],
		})
	}

	return authors, nil
}

func (s Service) Post(ctx context.Context, id string) (Post, error) {
	return s.store.Post(ctx, id)
}

// AuthorPosts lists the posts of a blog, newest first. Unknown authors are reported as not found.
func (s Service) AuthorPosts(ctx context.Context, authorID string) ([]Post, error) {
	if _, err := s.store.User(ctx, authorID); err != nil {
		return nil, err
	}

	return s.store.AuthorPosts(ctx, authorID)
}

// CreatePost writes a post and delivers it to the author's subscribers in the same
// transaction. Subscribers are emailed once the post is committed.
func (s Service) CreatePost(ctx context.Context, authorID string, in PostInput) (Post, error) {
	in, err := cleanPost(in)
	if err != nil {
		return Post{}, err
	}

	var (
		post Post
		subs []Subscription
	)
	err = s.store.Tx(ctx, func(tx Store) error {
		var err error
		post, err = tx.InsertPost(ctx, Post{
			AuthorID: authorID,
			Title:    in.Title,
			Body:     in.Body,
		})
		if err != nil {
			return err
		}

		subs, err = fanOutPost(ctx, tx, post)
		return err
	})
	if errors.Is(err, ErrConflict) {
		return Post{}, titleTaken(err)
	}
	if err != nil {
		return Post{}, fmt.Errorf("error creating post: %w", err)
	}

	s.notifySubscribers(ctx, post, subs)

	return post, nil
}

// UpdatePost edits a post owned by authorID. Posts owned by anyone else are not found.
func (s Service) UpdatePost(ctx context.Context, id, authorID string, in PostInput) (Post, error) {
	in, err := cleanPost(in)
	if err != nil {
		return Post{}, err
	}

	post, err := s.store.UpdatePost(ctx, id, authorID, in)
	if errors.Is(err, ErrConflict) {
		return Post{}, titleTaken(err)
	}
	if err != nil {
		return Post{}, err
	}

	return post, nil
}

// DeletePost removes a post owned by authorID along with its deliveries.
func (s Service) DeletePost(ctx context.Context, id, authorID string) error {
	return s.store.DeletePost(ctx, id, authorID)
}

// Subscribe follows authorID on behalf of subscriberID and back-fills the feed with
// every post the author already wrote.
func (s Service) Subscribe(ctx context.Context, authorID, subscriberID string) (Subscription, error) {
	if authorID == subscriberID {
		return Subscription{}, blogerrs.E(http.StatusUnprocessableEntity, "cannot subscribe to your own blog")
	}

	var sub Subscription
	err := s.store.Tx(ctx, func(tx Store) error {
		var err error
		sub, err = tx.InsertSubscription(ctx, Subscription{
			AuthorID:     authorID,
			SubscriberID: subscriberID,
		})
		if err != nil {
			return err
		}

		return fanOutSubscription(ctx, tx, sub)
	})
	if err != nil {
		return Subscription{}, fmt.Errorf("error subscribing: %w", err)
	}

	return sub, nil
}

// Unsubscribe stops following authorID. The feed loses every post delivered through it.
func (s Service) Unsubscribe(ctx context.Context, authorID, subscriberID string) error {
	return s.store.DeleteSubscription(ctx, authorID, subscriberID)
}

func (s Service) Subscriptions(ctx context.Context, subscriberID string) ([]Subscription, error) {
	return s.store.UserSubscriptions(ctx, subscriberID)
}

// Feed lists the posts delivered to userID, newest first, along with the total
// number of items matching args regardless of pagination.
func (s Service) Feed(ctx context.Context, userID string, args FeedArgs) ([]FeedItem, int, error) {
	items, err := s.store.UserFeed(ctx, userID, args)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountUserFeed(ctx, userID, args)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// MarkRead flags a feed post as read. Only the subscriber it was delivered to may do so.
func (s Service) MarkRead(ctx context.Context, feedPostID, userID string) error {
	fp, err := s.store.UserFeedPost(ctx, feedPostID, userID)
	if err != nil {
		return err
	}
	if fp.IsRead {
		return nil
	}

	return s.store.MarkFeedPostRead(ctx, fp.ID)
}

// Sends a single notification to everyone subscribed when the post went out.
//
// The post is already committed at this point, so failures are only logged. Recipients
// are resolved before returning, the send itself happens in the background.
func (s Service) notifySubscribers(ctx context.Context, post Post, subs []Subscription) {
	if len(subs) == 0 || s.notifier == nil {
		return
	}

	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.SubscriberID)
	}

	subscribers, err := s.store.Users(ctx, ids)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching subscribers to notify", "post_id", post.ID, "error", err)
		return
	}
	var recipients []string
	for _, usr := range subscribers {
		if usr.Email != "" {
			recipients = append(recipients, usr.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}

	author, err := s.store.User(ctx, post.AuthorID)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching author to notify", "post_id", post.ID, "error", err)
		return
	}

	np := NewPost{
		PostID:     post.ID,
		Title:      post.Title,
		AuthorName: author.Username,
		Recipients: recipients,
	}

	// Sent in the background, detached from the request so neither a slow mail server nor a
	// client hanging up holds up the post.
	notifyCtx := context.WithoutCancel(ctx)
	s.sending.Add(1)
	go func() {
		defer s.sending.Done()

		ctx, cancel := context.WithTimeout(notifyCtx, notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyNewPost(ctx, np); err != nil {
			slog.ErrorContext(ctx, "error notifying subscribers", "post_id", np.PostID, "recipients", len(np.Recipients), "error", err)
		}
	}()
}

func titleTaken(err error) error {
	return blogerrs.E(http.StatusConflict, err, blogerrs.Detail{Field: "title", Error: "already used by another of your posts"})
}
