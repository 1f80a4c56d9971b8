package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	"github.com/jdholdren/blogfeed/internal/blog"
	blogerrs "github.com/jdholdren/blogfeed/internal/errors"
	"github.com/jdholdren/blogfeed/internal/logger"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

const (
	sessionCookieName = "blog_session"
	loginPath         = "/sso-login"
)

// Describes a user's sessionState that's persisted to their cookie.
type sessionState struct {
	State  string // For SSO
	UserID string
}

type viewerKey struct{}

// Fetches the current session tied to the request.
func session(r *http.Request, secureCookie *securecookie.SecureCookie) sessionState {
	cookie, err := r.Cookie(sessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sessionState{}
	}
	if err != nil {
		slog.Error("error fetching cookie", "err", err)
		return sessionState{}
	}

	value := sessionState{}
	if err := secureCookie.Decode(sessionCookieName, cookie.Value, &value); err != nil {
		slog.Error("error decoding cookie", "err", err)
		return sessionState{}
	}

	return value
}

// Sets the session on the request.
func setSession(w http.ResponseWriter, secureCookie *securecookie.SecureCookie, https bool, sess sessionState) {
	encoded, err := secureCookie.Encode(sessionCookieName, sess)
	if err != nil {
		slog.Error("error encoding cookie", "err", err)
		return
	}

	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   https,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// Sends anyone without a session off to sign in. Signed in requests carry the
// user's id in their context, and in their logs.
func requireSessionMiddleware(sc *securecookie.SecureCookie) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := session(r, sc)
			if state.UserID == "" {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), viewerKey{}, state.UserID)
			ctx = logger.Ctx(ctx, slog.String("user_id", state.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// viewerID is the signed in user behind a request that went through [requireSessionMiddleware].
func viewerID(r *http.Request) string {
	id, _ := r.Context().Value(viewerKey{}).(string)
	return id
}

// Redirects the user to the SSO login page.
func (s Server) handleSSORedirect(w http.ResponseWriter, r *http.Request) error {
	// Create a state to store as part of the flow
	state := sessionState{
		State: uuid.NewString(),
	}
	setSession(w, s.secureCookie, s.httpsCookies, state)

	http.Redirect(w, r, s.ghOauthConfig.AuthCodeURL(state.State), http.StatusTemporaryRedirect)
	return nil
}

// Handles the code coming back from github
func (s Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	// Check the state and error
	sess := session(r, s.secureCookie)
	q := r.URL.Query()
	if sess.State == "" || q.Get("state") != sess.State {
		return blogerrs.E("invalid sso state", http.StatusBadRequest)
	}
	if q.Get("error") != "" {
		return blogerrs.E(fmt.Sprintf("sso failed: %s", q.Get("error")), http.StatusUnauthorized)
	}

	// Exchange:
	tok, err := s.ghOauthConfig.Exchange(ctx, q.Get("code"))
	if err != nil {
		return blogerrs.E(fmt.Errorf("error exchanging code: %w", err), http.StatusUnauthorized)
	}

	// Get some details about our person
	client := s.ghOauthConfig.Client(ctx, tok)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return blogerrs.E(fmt.Errorf("error fetching github user: %w", err), http.StatusBadGateway)
	}
	defer resp.Body.Close()

	type userInfo struct {
		Username          string `json:"login"`
		NotificationEmail string `json:"email"`
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return blogerrs.E(fmt.Errorf("error decoding github user: %w", err), http.StatusBadGateway)
	}

	// Ensure the user
	usr, err := s.ensureUser(ctx, blog.User{
		GithubID: info.Username,
		Username: info.Username,
		Email:    info.NotificationEmail,
	})
	if err != nil {
		return err
	}

	// Start a session
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{
		UserID: usr.ID,
	})

	// Use the configured redirect URL, defaulting to "/" if not set
	redirectURL := s.ssoRedirectURL
	if redirectURL == "" {
		redirectURL = "/"
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
	return nil
}

func (s Server) getLogout(w http.ResponseWriter, r *http.Request) error {
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{})

	http.Redirect(w, r, loginPath, http.StatusFound)
	return nil
}

type DebugLoginReq struct {
	GithubID string `json:"github_id"`
	Email    string `json:"email"`
}

func (req DebugLoginReq) Validate() error {
	if req.GithubID == "" {
		return blogerrs.E("invalid login", http.StatusUnprocessableEntity,
			blogerrs.Detail{Field: "github_id", Error: "is required"})
	}
	return nil
}

// Signs in as whoever is asked for, skipping github.
func (s Server) handleDebugLogin(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[DebugLoginReq](r.Body)
	if err != nil {
		return err
	}

	usr, err := s.ensureUser(r.Context(), blog.User{
		GithubID: body.GithubID,
		Username: body.GithubID,
		Email:    body.Email,
	})
	if err != nil {
		return err
	}

	// Issue an update to their session so they're logged in
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{UserID: usr.ID})
	return serverutil.WriteJSON(w, http.StatusOK, apiViewer(usr))
}
