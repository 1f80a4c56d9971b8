package api

import (
	"context"
	"time"

	"github.com/jdholdren/blogfeed/internal/blog"
)

// Looks a user up, going to the store only when the cache misses.
func (s Server) user(ctx context.Context, id string) (blog.User, error) {
	if usr, ok := s.userCache.Get(id); ok {
		return usr, nil
	}

	usr, err := s.blog.User(ctx, id)
	if err != nil {
		return blog.User{}, err
	}
	s.userCache.Add(id, usr)

	return usr, nil
}

// Signing in can change a user's email, so the cached copy is replaced.
func (s Server) ensureUser(ctx context.Context, usr blog.User) (blog.User, error) {
	usr, err := s.blog.EnsureUser(ctx, usr)
	if err != nil {
		return blog.User{}, err
	}
	s.userCache.Add(usr.ID, usr)

	return usr, nil
}

// Resolves usernames for a set of ids. Ids that don't resolve are left out.
func (s Server) usernames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}

		usr, err := s.user(ctx, id)
		if err != nil {
			return nil, err
		}
		names[id] = usr.Username
	}

	return names, nil
}

// Viewer is the structured data about the current user in the frontend.
type Viewer struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func apiViewer(usr blog.User) Viewer {
	return Viewer{
		UserID:    usr.ID,
		Username:  usr.Username,
		Email:     usr.Email,
		CreatedAt: usr.CreatedAt,
	}
}
