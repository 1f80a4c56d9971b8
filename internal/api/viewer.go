package api

import (
	"errors"
	"net/http"

	"github.com/jdholdren/blogfeed/internal/blog"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

// Describes whoever is signed in, or nothing at all for anonymous visitors.
func (s Server) handleViewer(w http.ResponseWriter, r *http.Request) error {
	sess := session(r, s.secureCookie)
	if sess.UserID == "" {
		return serverutil.WriteJSON(w, http.StatusOK, struct{}{})
	}

	usr, err := s.user(r.Context(), sess.UserID)
	if errors.Is(err, blog.ErrNotFound) {
		return serverutil.WriteJSON(w, http.StatusOK, struct{}{})
	}
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiViewer(usr))
}
