package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jdholdren/blogfeed/internal/blog"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type FeedItemResp struct {
	FeedPostID string    `json:"feed_post_id"`
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Summary    string    `json:"summary"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type FeedResp struct {
	Items      []FeedItemResp `json:"items"`
	Pagination paginationMeta `json:"pagination"`
}

func apiFeedItem(item blog.FeedItem) FeedItemResp {
	return FeedItemResp{
		FeedPostID: item.FeedPostID,
		PostID:     item.ID,
		AuthorID:   item.AuthorID,
		AuthorName: item.AuthorName,
		Title:      item.Title,
		Body:       item.Body,
		Summary:    summary(item.Body),
		IsRead:     item.IsRead,
		CreatedAt:  item.CreatedAt,
	}
}

// Lists the viewer's feed, newest post first.
func (s Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	limit, offset := parsePaginationParams(r, defaultFeedLimit, maxFeedLimit)
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	items, total, err := s.blog.Feed(r.Context(), viewerID(r), blog.FeedArgs{
		UnreadOnly: unread,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return err
	}

	resp := FeedResp{
		Items: make([]FeedItemResp, 0, len(items)),
		Pagination: paginationMeta{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}
	for _, item := range items {
		resp.Items = append(resp.Items, apiFeedItem(item))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) postMarkRead(w http.ResponseWriter, r *http.Request) error {
	if err := s.blog.MarkRead(r.Context(), mux.Vars(r)["feedPostID"], viewerID(r)); err != nil {
		return err
	}

	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}
