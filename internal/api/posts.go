package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jdholdren/blogfeed/internal/blog"
	blogerrs "github.com/jdholdren/blogfeed/internal/errors"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

type PostReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Only checks for presence, the blog cleans and vets the content itself.
func (req PostReq) Validate() error {
	var details []blogerrs.Detail
	if strings.TrimSpace(req.Title) == "" {
		details = append(details, blogerrs.Detail{Field: "title", Error: "is required"})
	}
	if strings.TrimSpace(req.Body) == "" {
		details = append(details, blogerrs.Detail{Field: "body", Error: "is required"})
	}
	if len(details) > 0 {
		return blogerrs.E("invalid post", http.StatusUnprocessableEntity, details)
	}

	return nil
}

type PostResp struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	BodyHTML   string    `json:"body_html"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func apiPost(p blog.Post, authorName string) PostResp {
	return PostResp{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		AuthorName: authorName,
		Title:      p.Title,
		Body:       p.Body,
		BodyHTML:   bodyHTML(p.Body),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type PostListResp struct {
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Posts      []PostResp `json:"posts"`
}

func (s Server) getPost(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	post, err := s.blog.Post(ctx, mux.Vars(r)["postID"])
	if err != nil {
		return err
	}
	author, err := s.user(ctx, post.AuthorID)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiPost(post, author.Username))
}

func (s Server) getMyPosts(w http.ResponseWriter, r *http.Request) error {
	return s.writeAuthorPosts(w, r, viewerID(r))
}

func (s Server) getAuthorPosts(w http.ResponseWriter, r *http.Request) error {
	return s.writeAuthorPosts(w, r, mux.Vars(r)["authorID"])
}

func (s Server) writeAuthorPosts(w http.ResponseWriter, r *http.Request, authorID string) error {
	ctx := r.Context()

	posts, err := s.blog.AuthorPosts(ctx, authorID)
	if err != nil {
		return err
	}
	author, err := s.user(ctx, authorID)
	if err != nil {
		return err
	}

	resp := PostListResp{
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Posts:      make([]PostResp, 0, len(posts)),
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, apiPost(p, author.Username))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) postCreatePost(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	body, err := serverutil.DecodeValid[PostReq](r.Body)
	if err != nil {
		return err
	}

	post, err := s.blog.CreatePost(ctx, viewerID(r), blog.PostInput{
		Title: body.Title,
		Body:  body.Body,
	})
	if err != nil {
		return err
	}
	author, err := s.user(ctx, post.AuthorID)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, apiPost(post, author.Username))
}

// This route is used to aid the front-end with validation, like running a profanity check.
// Creating or updating a post never depends on it.
func (s Server) postPrecheckPost(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[PostReq](r.Body)
	if err != nil {
		return err
	}
	if err := blog.Precheck(blog.PostInput{Title: body.Title, Body: body.Body}); err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (s Server) postUpdatePost(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	body, err := serverutil.DecodeValid[PostReq](r.Body)
	if err != nil {
		return err
	}

	post, err := s.blog.UpdatePost(ctx, mux.Vars(r)["postID"], viewerID(r), blog.PostInput{
		Title: body.Title,
		Body:  body.Body,
	})
	if err != nil {
		return err
	}
	author, err := s.user(ctx, post.AuthorID)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiPost(post, author.Username))
}

func (s Server) postDeletePost(w http.ResponseWriter, r *http.Request) error {
	if err := s.blog.DeletePost(r.Context(), mux.Vars(r)["postID"], viewerID(r)); err != nil {
		return err
	}

	http.Redirect(w, r, "/myposts/", http.StatusFound)
	return nil
}
