package network

import (
	"context"
	"fmt"
	goLog "log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	logging "github.com/inconshreveable/log15"
	"golang.org/x/net/http2"

	"github.com/laonet/laocoord/lib/errors"
)

const (
	RouterNameAPI     = "api"
	RouterNameJSONRPC = "jsonrpc"
	RouterNameMetrics = "metrics"
	RouterNameDebug   = "debug"
)

var (
	URLPathPrefixAPI     = fmt.Sprintf("/%s", RouterNameAPI)
	URLPathPrefixJSONRPC = fmt.Sprintf("/%s", RouterNameJSONRPC)
	URLPathPrefixMetrics = fmt.Sprintf("/%s", RouterNameMetrics)
	URLPathPrefixDebug   = fmt.Sprintf("/%s", RouterNameDebug)
)

// HTTPServer serves the API of the node. Every path prefix has its own
// router, so middlewares can be set per prefix.
type HTTPServer struct {
	sync.RWMutex

	server    *http.Server
	router    *mux.Router
	rootRoute *mux.Route
	routers   map[string]*mux.Router
	ready     bool

	config *HTTPServerConfig
	log    logging.Logger
}

func NewHTTPServer(config *HTTPServerConfig) *HTTPServer {
	httpLog := log.New(logging.Ctx{"node": config.NodeName})
	errorLog := goLog.New(HTTPErrorLogWriter{httpLog}, "", 0)

	server := &http.Server{
		Addr:              config.Addr,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ErrorLog:          errorLog,
	}
	server.SetKeepAlivesEnabled(true)

	if config.IsHTTPS() {
		http2.ConfigureServer(server, &http2.Server{IdleTimeout: config.IdleTimeout})
	}

	baseRouter := mux.NewRouter()

	s := &HTTPServer{
		server: server,
		router: baseRouter,
		config: config,
		log:    httpLog,
	}
	s.routers = map[string]*mux.Router{
		RouterNameAPI:     baseRouter.PathPrefix(URLPathPrefixAPI).Subrouter(),
		RouterNameJSONRPC: baseRouter.PathPrefix(URLPathPrefixJSONRPC).Subrouter(),
		RouterNameMetrics: baseRouter.PathPrefix(URLPathPrefixMetrics).Subrouter(),
		RouterNameDebug:   baseRouter.PathPrefix(URLPathPrefixDebug).Subrouter(),
	}
	s.rootRoute = baseRouter.Handle("/", http.HandlerFunc(s.notReady))
	server.Handler = HTTPLogHandler{log: httpLog, handler: s}

	return s
}

func (s *HTTPServer) notReady(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}

func (s *HTTPServer) Config() *HTTPServerConfig {
	return s.config
}

// ServeHTTP answers 503 until Ready is called.
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.RLock()
	ready := s.ready
	s.RUnlock()

	if !ready {
		s.notReady(w, r)
		return
	}

	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// AddMiddleware adds middlewares to the router of routerName; an empty name
// is the base router.
func (s *HTTPServer) AddMiddleware(routerName string, mws ...mux.MiddlewareFunc) error {
	r := s.router
	if len(routerName) > 0 {
		var found bool
		if r, found = s.routers[routerName]; !found {
			return errors.BadRequestParameter.Clone().SetData("router", routerName)
		}
	}

	for _, mw := range mws {
		r.Use(mw)
	}

	return nil
}

// AddHandler routes pattern to handler by its path prefix. A pattern ending
// with `*` matches every path under it.
func (s *HTTPServer) AddHandler(pattern string, handler http.Handler) *mux.Route {
	var r *mux.Router
	var prefix string
	for name, p := range map[string]string{
		RouterNameAPI:     URLPathPrefixAPI,
		RouterNameJSONRPC: URLPathPrefixJSONRPC,
		RouterNameMetrics: URLPathPrefixMetrics,
		RouterNameDebug:   URLPathPrefixDebug,
	} {
		if pattern == p || strings.HasPrefix(pattern, p+"/") {
			r = s.routers[name]
			prefix = pattern[len(p):]
			break
		}
	}

	if r == nil {
		if pattern == "" || pattern == "/" {
			return s.rootRoute.Handler(handler)
		}
		return s.router.Handle(pattern, handler)
	}

	if strings.HasSuffix(prefix, "*") {
		return r.PathPrefix(strings.TrimSuffix(prefix, "*")).Handler(handler)
	}

	// an empty prefix matches the path prefix of the router itself
	return r.Handle(prefix, handler)
}

func (s *HTTPServer) Ready() error {
	s.Lock()
	defer s.Unlock()

	s.ready = true

	return nil
}

func (s *HTTPServer) IsReady() bool {
	s.RLock()
	defer s.RUnlock()

	return s.ready
}

// Start blocks until the server is stopped.
func (s *HTTPServer) Start() error {
	s.log.Debug("starting http server", "config", s.config)

	var err error
	if s.config.IsHTTPS() {
		err = s.server.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		err = s.server.ListenAndServe()
	}

	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
