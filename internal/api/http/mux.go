package http

import (
	"net/http"
	"time"

	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	errPath     = "/err/"
	pingPath    = "/ping/"
	notifyPath  = "/notify/"
	metricsPath = "/metrics"
)

// MuxOption configures mux.
type MuxOption func(*muxOptions)

type muxOptions struct {
	repanic bool
}

// WithRepanic makes handlers raise recovered panics again after reporting them.
func WithRepanic() MuxOption {
	return func(o *muxOptions) {
		o.repanic = true
	}
}

// NewMux creates router for app's http server.
func NewMux(n *notifier.Notifier, timeout time.Duration, l logrus.FieldLogger, opts ...MuxOption) *http.ServeMux {
	var o muxOptions
	for _, opt := range opts {
		opt(&o)
	}

	timeoutMiddleware := NewTimeoutMiddleware(timeout)
	m := http.NewServeMux()
	handle := func(route string, h http.HandlerFunc) {
		notifierMiddleware := NewNotifierMiddleware(n, route, l, o.repanic)
		m.HandleFunc(route, notifierMiddleware(timeoutMiddleware(h)))
	}

	handle(errPath, NewErrorHandler())
	handle(pingPath, NewPingHandler())
	handle(notifyPath, NewNotifyHandler(n, l))
	m.Handle(metricsPath, promhttp.HandlerFor(n.Registry(), promhttp.HandlerOpts{}))

	return m
}
