// Package api serves the blog over http: feeds, blogs, posts and subscriptions
// for signed in users, plus the GitHub SSO flow that signs them in.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/jdholdren/blogfeed/internal/blog"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

const userCacheSize = 1024

type (
	// Server is the http surface of the blog.
	Server struct {
		*http.Server

		blog      blog.Service
		userCache *lru.Cache[string, blog.User]

		ghOauthConfig  oauth2.Config
		secureCookie   *securecookie.SecureCookie
		httpsCookies   bool   // Whether or not HTTPS should be used for cookies
		ssoRedirectURL string // URL to redirect to after successful SSO login
	}

	ServerConfig struct {
		Port               int
		CookieHashKey      []byte
		CookieBlockKey     []byte
		HttpsCookies       bool
		GithubClientID     string
		GithubClientSecret string
		CorsHeader         string
		SSORedirectURL     string

		DebugEndpoints bool
	}
)

func NewServer(config ServerConfig, svc blog.Service) *Server {
	var (
		r        = serverutil.ErrRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[string, blog.User](userCacheSize)
	)

	// A nil block key leaves cookies signed but unencrypted.
	var blockKey []byte
	if len(config.CookieBlockKey) > 0 {
		blockKey = config.CookieBlockKey
	}

	srvr := Server{
		blog:           svc,
		userCache:      cache,
		secureCookie:   securecookie.New(config.CookieHashKey, blockKey),
		httpsCookies:   config.HttpsCookies,
		ssoRedirectURL: config.SSORedirectURL,
		ghOauthConfig: oauth2.Config{
			ClientID:     config.GithubClientID,
			ClientSecret: config.GithubClientSecret,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/viewer", srvr.handleViewer).Methods(http.MethodGet)
	r.HandleFuncE(loginPath, srvr.handleSSORedirect).Methods(http.MethodGet)
	r.HandleFuncE("/sso-callback", srvr.handleSSOCallback).Methods(http.MethodGet)
	r.HandleFuncE("/logout", srvr.getLogout).Methods(http.MethodGet)

	if config.DebugEndpoints {
		// For local testing
		r.HandleFuncE("/login", srvr.handleDebugLogin).Methods(http.MethodPost)
	}

	authed := serverutil.ErrRouter{Router: r.NewRoute().Subrouter()}
	authed.Use(requireSessionMiddleware(srvr.secureCookie))
	handle := func(path string, f serverutil.HandlerFuncE) *mux.Route {
		return authed.HandleFuncE(path, mapErrs(f))
	}

	// Feed
	handle("/", srvr.getFeed).Methods(http.MethodGet)
	handle("/post/{feedPostID}/read", srvr.postMarkRead).Methods(http.MethodGet, http.MethodPost)

	// Blogs and subscriptions
	handle("/list/", srvr.getAuthors).Methods(http.MethodGet)
	handle("/subscriptions/", srvr.getSubscriptions).Methods(http.MethodGet)
	handle("/subscribe/{authorID}/", srvr.postSubscribe).Methods(http.MethodGet, http.MethodPost)
	handle("/unsubscribe/{authorID}/", srvr.postUnsubscribe).Methods(http.MethodGet, http.MethodPost)
	handle("/myposts/", srvr.getMyPosts).Methods(http.MethodGet)

	// Posts. Creation is registered ahead of the lookup so "create" is never taken for an id.
	handle("/post/create/", srvr.postCreatePost).Methods(http.MethodPost)
	handle("/post/precheck/", srvr.postPrecheckPost).Methods(http.MethodPost)
	handle("/post/{postID}/", srvr.getPost).Methods(http.MethodGet)
	handle("/post/{postID}/update/", srvr.postUpdatePost).Methods(http.MethodPost)
	handle("/post/{postID}/delete/", srvr.postDeletePost).Methods(http.MethodGet, http.MethodPost)

	// Catches any single segment left over, so it goes last.
	handle("/{authorID}/", srvr.getAuthorPosts).Methods(http.MethodGet)

	slog.Debug("configured blog server", "port", config.Port)

	return &srvr
}
