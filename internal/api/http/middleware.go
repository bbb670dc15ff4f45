package http

import (
	"context"
	"net/http"
	"time"

	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/sirupsen/logrus"
)

// NewTimeoutMiddleware creates middleware that cancels requests context after given time.
func NewTimeoutMiddleware(timeout time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)
			h(w, r)
		}
	}
}

// NewNotifierMiddleware creates middleware reporting panics of the handler to the notifier.
//
// Recovered panic is queued as a notice. Then it's either raised again as *notifier.PanicError (repanic)
// or answered with status 500. When performance stats are enabled, handler call is measured as route metric.
func NewNotifierMiddleware(
	n *notifier.Notifier,
	route string,
	l logrus.FieldLogger,
	repanic bool,
) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				perr := notifier.NewPanicError(v)

				notice := n.BuildNotice(perr)
				notice.SetRequest(r)
				notice.SetRoute(route)
				notice.SetComponent("http")
				// Reporting doesn't depend on the client still waiting for the response.
				if err := n.SendNotice(context.Background(), notice); err != nil {
					l.Errorf("couldn't queue panic notice for %s %s: %v", r.Method, route, err)
				}

				if repanic {
					panic(perr)
				}
				if !sw.wroteHeader {
					http.Error(sw, "", http.StatusInternalServerError)
				}
			}()

			if !n.Config().PerformanceStats {
				h(sw, r)
				return
			}

			metric := notifier.NewRouteMetric(r.Method, route)
			n.Routes().Track(r.Context(), metric, func() {
				h(sw, r)
				metric.StatusCode = sw.status()
				metric.ContentType = sw.Header().Get("Content-Type")
			})
		}
	}
}

// statusWriter remembers response status code.
type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.code = http.StatusOK
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.code
}
