package network

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/ulule/limiter"
	"github.com/ulule/limiter/drivers/middleware/stdlib"
	"github.com/ulule/limiter/drivers/store/memory"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/httputils"
	"github.com/laonet/laocoord/lib/metrics"
)

func RecoverMiddleware(printStack bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", r)
					}
					httputils.WriteJSON(w, http.StatusInternalServerError, err)
					log.Error("recover an panic", "err", err)
					if printStack {
						debug.PrintStack()
					}
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits the requests per remote address; rate is
// formatted like "100-S" or "1000-H".
func RateLimitMiddleware(rate string) (mux.MiddlewareFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, errors.BadRequestParameter.Clone().SetData("rate", rate).SetData("error", err.Error())
	}

	middleware := stdlib.NewMiddleware(limiter.New(memory.NewStore(), r))

	return func(next http.Handler) http.Handler {
		return middleware.Handler(next)
	}, nil
}

// MetricsMiddleware counts the requests by route template.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		metrics.API.Begin()

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		writer := NewHTTPResponseLogWriter(w)
		next.ServeHTTP(writer, r)

		metrics.API.Done(route, r.Method, writer.Status(), begin)
	})
}
