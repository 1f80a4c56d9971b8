package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jdholdren/blogfeed/internal/blog"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

type AuthorResp struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	IsSubscribed bool      `json:"is_subscribed"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuthorListResp struct {
	Authors []AuthorResp `json:"authors"`
}

// Lists every blog, and whether the viewer follows it.
func (s Server) getAuthors(w http.ResponseWriter, r *http.Request) error {
	authors, err := s.blog.Authors(r.Context(), viewerID(r))
	if err != nil {
		return err
	}

	resp := AuthorListResp{
		Authors: make([]AuthorResp, 0, len(authors)),
	}
	for _, a := range authors {
		resp.Authors = append(resp.Authors, AuthorResp{
			ID:           a.ID,
			Username:     a.Username,
			IsSubscribed: a.IsSubscribed,
			CreatedAt:    a.CreatedAt,
		})
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

type SubscriptionResp struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type SubscriptionListResp struct {
	Subscriptions []SubscriptionResp `json:"subscriptions"`
}

func (s Server) getSubscriptions(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	subs, err := s.blog.Subscriptions(ctx, viewerID(r))
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.AuthorID)
	}
	names, err := s.usernames(ctx, ids)
	if err != nil {
		return err
	}

	resp := SubscriptionListResp{
		Subscriptions: make([]SubscriptionResp, 0, len(subs)),
	}
	for _, sub := range subs {
		resp.Subscriptions = append(resp.Subscriptions, apiSubscription(sub, names[sub.AuthorID]))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func apiSubscription(sub blog.Subscription, authorName string) SubscriptionResp {
	return SubscriptionResp{
		ID:         sub.ID,
		AuthorID:   sub.AuthorID,
		AuthorName: authorName,
		CreatedAt:  sub.CreatedAt,
	}
}

func (s Server) postSubscribe(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.blog.Subscribe(r.Context(), mux.Vars(r)["authorID"], viewerID(r)); err != nil {
		return err
	}

	http.Redirect(w, r, "/list/", http.StatusFound)
	return nil
}

func (s Server) postUnsubscribe(w http.ResponseWriter, r *http.Request) error {
	if err := s.blog.Unsubscribe(r.Context(), mux.Vars(r)["authorID"], viewerID(r)); err != nil {
		return err
	}

	http.Redirect(w, r, "/list/", http.StatusFound)
	return nil
}
