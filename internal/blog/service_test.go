package blog_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/blogfeed/internal/blog"
	blogerrs "github.com/jdholdren/blogfeed/internal/errors"
	"github.com/jdholdren/blogfeed/internal/migrations"
	"github.com/jdholdren/blogfeed/internal/sqlite"
)

// Records notifications instead of sending them.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []blog.NewPost
	err  error
}

func (f *fakeNotifier) NotifyNewPost(_ context.Context, np blog.NewPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, np)
	return f.err
}

func (f *fakeNotifier) messages() []blog.NewPost {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]blog.NewPost(nil), f.sent...)
}

// Fails every feed post insert, inside transactions too.
type failingFeedStore struct {
	blog.Store
	err error
}

func (s failingFeedStore) Tx(ctx context.Context, fn func(blog.Store) error) error {
	return s.Store.Tx(ctx, func(tx blog.Store) error {
		return fn(failingFeedStore{Store: tx, err: s.err})
	})
}

func (s failingFeedStore) InsertFeedPosts(context.Context, []blog.FeedPost) error {
	return s.err
}

type testEnv struct {
	svc      blog.Service
	repo     sqlite.Repo
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dbx, err := sqlite.Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	var (
		repo     = sqlite.New(dbx)
		notifier = &fakeNotifier{}
	)
	return testEnv{
		svc:      blog.NewService(repo, notifier),
		repo:     repo,
		notifier: notifier,
	}
}

func (e testEnv) user(t *testing.T, name string) blog.User {
	t.Helper()

	usr, err := e.svc.EnsureUser(context.Background(), blog.User{GithubID: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return usr
}

func (e testEnv) post(t *testing.T, authorID, title, body string) blog.Post {
	t.Helper()

	post, err := e.svc.CreatePost(context.Background(), authorID, blog.PostInput{Title: title, Body: body})
	require.NoError(t, err)
	return post
}

func (e testEnv) subscribe(t *testing.T, authorID, subscriberID string) blog.Subscription {
	t.Helper()

	sub, err := e.svc.Subscribe(context.Background(), authorID, subscriberID)
	require.NoError(t, err)
	return sub
}

func (e testEnv) feedTitles(t *testing.T, userID string) []string {
	t.Helper()

	items, _, err := e.svc.Feed(context.Background(), userID, blog.FeedArgs{})
	require.NoError(t, err)

	ret := []string{}
	for _, item := range items {
		ret = append(ret, item.Title)
	}
	return ret
}

func TestFeed_SubscribeAfterPosting(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
	)

	env.post(t, a.ID, "Hello", "world")
	env.subscribe(t, a.ID, b.ID)
	assert.Equal(t, []string{"Hello"}, env.feedTitles(t, b.ID))

	env.post(t, a.ID, "Second", "post")
	assert.Equal(t, []string{"Second", "Hello"}, env.feedTitles(t, b.ID))
}

func TestFeed_SubscribeBeforePosting(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
	)

	env.subscribe(t, a.ID, b.ID)
	assert.Empty(t, env.feedTitles(t, b.ID))

	env.post(t, a.ID, "One", "first")
	env.post(t, a.ID, "Two", "second")
	assert.Equal(t, []string{"Two", "One"}, env.feedTitles(t, b.ID))
}

func TestFeed_OnlyFollowedAuthors(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
		c   = env.user(t, "c")
	)

	env.subscribe(t, a.ID, c.ID)
	env.post(t, a.ID, "From A", "a")
	env.post(t, b.ID, "From B", "b")

	assert.Equal(t, []string{"From A"}, env.feedTitles(t, c.ID))
	assert.Empty(t, env.feedTitles(t, a.ID))
	assert.Empty(t, env.feedTitles(t, b.ID))
}

func TestFeed_MergesAuthorsNewestFirst(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
		c   = env.user(t, "c")
	)

	env.post(t, a.ID, "A1", "x")
	env.post(t, b.ID, "B1", "x")
	env.subscribe(t, a.ID, c.ID)
	env.subscribe(t, b.ID, c.ID)
	env.post(t, a.ID, "A2", "x")

	assert.Equal(t, []string{"A2", "B1", "A1"}, env.feedTitles(t, c.ID))

	_, total, err := env.svc.Feed(context.Background(), c.ID, blog.FeedArgs{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestUnsubscribe_RemovesFromFeed(t *testing.T) {
	var (
		ctx = context.Background()
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
	)
	env.post(t, a.ID, "Hello", "world")
	env.subscribe(t, a.ID, b.ID)

	require.NoError(t, env.svc.Unsubscribe(ctx, a.ID, b.ID))
	assert.Empty(t, env.feedTitles(t, b.ID))

	assert.ErrorIs(t, env.svc.Unsubscribe(ctx, a.ID, b.ID), blog.ErrNotFound)

	// Subscribing again back-fills without duplicates.
	env.subscribe(t, a.ID, b.ID)
	assert.Equal(t, []string{"Hello"}, env.feedTitles(t, b.ID))
}

func TestDeletePost_RemovesFromFeed(t *testing.T) {
	var (
		ctx  = context.Background()
		env  = newTestEnv(t)
		a    = env.user(t, "a")
		b    = env.user(t, "b")
		post = env.post(t, a.ID, "Hello", "world")
	)
	env.subscribe(t, a.ID, b.ID)

	require.NoError(t, env.svc.DeletePost(ctx, post.ID, a.ID))
	assert.Empty(t, env.feedTitles(t, b.ID))
}

func TestSubscribe_Duplicate(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
	)
	env.subscribe(t, a.ID, b.ID)

	_, err := env.svc.Subscribe(context.Background(), a.ID, b.ID)
	assert.ErrorIs(t, err, blog.ErrConflict)
}

func TestSubscribe_UnknownAuthor(t *testing.T) {
	var (
		env = newTestEnv(t)
		b   = env.user(t, "b")
	)

	_, err := env.svc.Subscribe(context.Background(), "ghost-usr", b.ID)
	assert.ErrorIs(t, err, blog.ErrNotFound)
}

func TestSubscribe_Self(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
	)

	_, err := env.svc.Subscribe(context.Background(), a.ID, a.ID)
	status, ok := blogerrs.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestCreatePost_DuplicateTitle(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
	)
	env.subscribe(t, a.ID, b.ID)
	env.post(t, a.ID, "Hello", "world")

	_, err := env.svc.CreatePost(context.Background(), a.ID, blog.PostInput{Title: "Hello", Body: "again"})
	assert.ErrorIs(t, err, blog.ErrConflict)
	status, ok := blogerrs.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, status)

	// The rejected post delivered nothing.
	assert.Equal(t, []string{"Hello"}, env.feedTitles(t, b.ID))
}

func TestCreatePost_Invalid(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
	)

	_, err := env.svc.CreatePost(context.Background(), a.ID, blog.PostInput{Title: "", Body: "world"})
	status, ok := blogerrs.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	var (
		ctx  = context.Background()
		env  = newTestEnv(t)
		a    = env.user(t, "a")
		b    = env.user(t, "b")
		post = env.post(t, a.ID, "Hello", "world")
	)

	_, err := env.svc.UpdatePost(ctx, post.ID, b.ID, blog.PostInput{Title: "Mine now", Body: "x"})
	assert.ErrorIs(t, err, blog.ErrNotFound)
	assert.ErrorIs(t, env.svc.DeletePost(ctx, post.ID, b.ID), blog.ErrNotFound)

	got, err := env.svc.Post(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)

	updated, err := env.svc.UpdatePost(ctx, post.ID, a.ID, blog.PostInput{Title: "Hello, edited", Body: "world"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, edited", updated.Title)
}

func TestMarkRead(t *testing.T) {
	var (
		ctx = context.Background()
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
		c   = env.user(t, "c")
	)
	env.subscribe(t, a.ID, b.ID)
	env.post(t, a.ID, "Hello", "world")

	items, _, err := env.svc.Feed(ctx, b.ID, blog.FeedArgs{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.False(t, items[0].IsRead)
	id := items[0].FeedPostID

	// Someone else cannot touch it.
	assert.ErrorIs(t, env.svc.MarkRead(ctx, id, c.ID), blog.ErrNotFound)

	require.NoError(t, env.svc.MarkRead(ctx, id, b.ID))
	require.NoError(t, env.svc.MarkRead(ctx, id, b.ID))

	items, _, err = env.svc.Feed(ctx, b.ID, blog.FeedArgs{})
	require.NoError(t, err)
	assert.True(t, items[0].IsRead)

	unread, total, err := env.svc.Feed(ctx, b.ID, blog.FeedArgs{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.Zero(t, total)
}

func TestCreatePost_NotifiesSubscribers(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "alice")
		b   = env.user(t, "bob")
		c   = env.user(t, "carol")
	)

	// Nobody to tell yet
	env.post(t, a.ID, "Quiet", "nobody here")
	env.svc.Wait()
	assert.Empty(t, env.notifier.messages())

	env.subscribe(t, a.ID, b.ID)
	env.subscribe(t, a.ID, c.ID)
	post := env.post(t, a.ID, "Loud", "everybody")

	env.svc.Wait()
	sent := env.notifier.messages()
	require.Len(t, sent, 1)
	got := sent[0]
	assert.Equal(t, post.ID, got.PostID)
	assert.Equal(t, "Loud", got.Title)
	assert.Equal(t, "alice", got.AuthorName)
	assert.ElementsMatch(t, []string{"bob@example.com", "carol@example.com"}, got.Recipients)
}

func TestCreatePost_NotifierFailureIsNotFatal(t *testing.T) {
	var (
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
	)
	env.notifier.err = errors.New("smtp is down")
	env.subscribe(t, a.ID, b.ID)

	_, err := env.svc.CreatePost(context.Background(), a.ID, blog.PostInput{Title: "Hello", Body: "world"})
	require.NoError(t, err)
	env.svc.Wait()
	assert.Len(t, env.notifier.messages(), 1)
	assert.Equal(t, []string{"Hello"}, env.feedTitles(t, b.ID))
}

func TestCreatePost_FanOutFailureRollsBack(t *testing.T) {
	var (
		ctx  = context.Background()
		env  = newTestEnv(t)
		a    = env.user(t, "a")
		b    = env.user(t, "b")
		boom = errors.New("boom")
	)
	env.subscribe(t, a.ID, b.ID)

	failing := blog.NewService(failingFeedStore{Store: env.repo, err: boom}, env.notifier)
	_, err := failing.CreatePost(ctx, a.ID, blog.PostInput{Title: "Hello", Body: "world"})
	require.ErrorIs(t, err, boom)

	posts, err := env.svc.AuthorPosts(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, env.feedTitles(t, b.ID))

	failing.Wait()
	assert.Empty(t, env.notifier.messages())
}

func TestCreatePost_KeepsTextAsWritten(t *testing.T) {
	var (
		ctx = context.Background()
		env = newTestEnv(t)
		a   = env.user(t, "a")
	)

	post := env.post(t, a.ID, "  Fish & chips <3  ", "1 < 2 & more")
	assert.Equal(t, "Fish & chips <3", post.Title)

	got, err := env.svc.Post(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fish & chips <3", got.Title)
	assert.Equal(t, "1 < 2 & more", got.Body)

	updated, err := env.svc.UpdatePost(ctx, post.ID, a.ID, blog.PostInput{Title: "a <b> c", Body: "<p>x</p> & y"})
	require.NoError(t, err)
	assert.Equal(t, "a <b> c", updated.Title)
	assert.Equal(t, "<p>x</p> & y", updated.Body)
}

func TestAuthors(t *testing.T) {
	var (
		ctx = context.Background()
		env = newTestEnv(t)
		a   = env.user(t, "a")
		b   = env.user(t, "b")
		c   = env.user(t, "c")
	)
	env.subscribe(t, a.ID, c.ID)

	authors, err := env.svc.Authors(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, authors, 3)

	subscribed := map[string]bool{}
	for _, author := range authors {
		subscribed[author.ID] = author.IsSubscribed
	}
	assert.Equal(t, map[string]bool{a.ID: true, b.ID: false, c.ID: false}, subscribed)
	assert.Equal(t, c.ID, authors[0].ID)
}

func TestAuthorPosts_UnknownAuthor(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.AuthorPosts(context.Background(), "ghost-usr")
	assert.ErrorIs(t, err, blog.ErrNotFound)
}
