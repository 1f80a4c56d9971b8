package api

import (
	"errors"
	"net/http"

	"github.com/jdholdren/blogfeed/internal/blog"
	blogerrs "github.com/jdholdren/blogfeed/internal/errors"
	"github.com/jdholdren/blogfeed/internal/serverutil"
)

// mapErrs turns the domain's sentinel errors into their http counterparts.
//
// Anything owned by someone else is reported the same as something missing.
func mapErrs(f serverutil.HandlerFuncE) serverutil.HandlerFuncE {
	return func(w http.ResponseWriter, r *http.Request) error {
		err := f(w, r)

		var blogErr *blogerrs.Error
		switch {
		case err == nil:
			return nil
		case errors.As(err, &blogErr):
			return blogErr
		case errors.Is(err, blog.ErrNotFound):
			return blogerrs.E(http.StatusNotFound, "not found")
		case errors.Is(err, blog.ErrConflict):
			return blogerrs.E(http.StatusConflict, err)
		}

		return err
	}
}
