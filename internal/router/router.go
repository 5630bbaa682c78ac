// Package router builds the HTTP surface of both services. Each service gets
// its own chi mux sharing the same middleware chain, static asset routes and
// internal endpoints.
package router

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/gzippedhttp"
	"github.com/patric-chuzhbe/flatapi/internal/ipchecker"
	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/metrics"
)

type lister interface {
	List(ctx context.Context, collection string) ([]string, error)
}

type limiter interface {
	Handler(next http.Handler) http.Handler
}

type options struct {
	publicDir        string
	ipChecker        *ipchecker.IPChecker
	limiter          limiter
	stats            lister
	statsCollections []string
}

type InitOption func(*options)

// WithPublicDir sets the directory served under /public.
func WithPublicDir(dir string) InitOption {
	return func(o *options) {
		o.publicDir = dir
	}
}

// WithTrustedSubnet gates /metrics and /api/internal/stats.
func WithTrustedSubnet(checker *ipchecker.IPChecker) InitOption {
	return func(o *options) {
		o.ipChecker = checker
	}
}

func WithRateLimiter(l limiter) InitOption {
	return func(o *options) {
		o.limiter = l
	}
}

// WithStats counts the records of collections for /api/internal/stats.
func WithStats(db lister, collections ...string) InitOption {
	return func(o *options) {
		o.stats = db
		o.statsCollections = collections
	}
}

func newOptions(opts []InitOption) *options {
	o := &options{publicDir: "public"}
	for _, opt := range opts {
		opt(o)
	}
	if o.ipChecker == nil {
		o.ipChecker, _ = ipchecker.New("")
	}

	return o
}

// newMux returns a mux carrying the shared middleware chain and routes.
func newMux(o *options) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.CleanPath)
	router.Use(middleware.StripSlashes)
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(metrics.InstrumentHandler)
	router.Use(recoverer)
	if o.limiter != nil {
		router.Use(o.limiter.Handler)
	}
	router.Use(gzippedhttp.UngzipRequest)
	router.Use(gzippedhttp.GzipResponse)

	router.NotFound(func(response http.ResponseWriter, _ *http.Request) {
		render(response, http.StatusNotFound, contentJSON, nil)
	})
	router.MethodNotAllowed(func(response http.ResponseWriter, _ *http.Request) {
		render(response, http.StatusMethodNotAllowed, contentJSON, nil)
	})

	router.Get(`/ping`, getPing)
	router.Get(`/examples/error`, getExampleserror)
	router.Get(`/favicon.ico`, o.getFavicon)
	router.Get(`/public/*`, o.getPublic)

	router.Group(func(internal chi.Router) {
		internal.Use(o.ipChecker.TrustedOnly)
		internal.Get(`/api/internal/stats`, o.getApiinternalstats)
		internal.Handle(`/metrics`, metrics.Handler())
	})

	return router
}

// recoverer turns a handler panic into a 500 with the generic message.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			logger.Log.Errorw(
				"handler panicked",
				"request_id", middleware.GetReqID(request.Context()),
				"uri", request.RequestURI,
				"panic", recovered,
			)
			render(response, http.StatusInternalServerError, contentJSON, errorBody{Error: apperr.UnknownErrorMessage})
		}()

		next.ServeHTTP(response, request)
	})
}

func getPing(response http.ResponseWriter, _ *http.Request) {
	render(response, http.StatusOK, contentJSON, nil)
}

func getExampleserror(http.ResponseWriter, *http.Request) {
	panic("this is an example error")
}

// readAsset reads a file below the public directory. Paths are cleaned
// against the root so they cannot escape it.
func (o *options) readAsset(name string) ([]byte, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	file, err := http.Dir(o.publicDir).Open(path.Clean("/" + name))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return nil, false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, false
	}

	return content, true
}

func (o *options) getPublic(response http.ResponseWriter, request *http.Request) {
	name := chi.URLParam(request, "*")
	content, ok := o.readAsset(name)
	if !ok {
		response.WriteHeader(http.StatusNotFound)
		return
	}

	render(response, http.StatusOK, contentTypeOf(name), content)
}

func (o *options) getFavicon(response http.ResponseWriter, _ *http.Request) {
	content, ok := o.readAsset("favicon.ico")
	if !ok {
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	render(response, http.StatusOK, contentFavicon, content)
}

func (o *options) getApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats := make(map[string]int, len(o.statsCollections))
	if o.stats != nil {
		for _, collection := range o.statsCollections {
			ids, err := o.stats.List(request.Context(), collection)
			if err != nil {
				renderError(response, apperr.Internal("Could not count the records", err))
				return
			}
			stats[collection] = len(ids)
		}
	}

	renderJSON(response, stats)
}
