package http

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/m-zajac/errnotify/internal/app"
	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SyncNotifier can build and send notice immediately.
//go:generate mockgen -destination mock/notifier.go -package mock github.com/m-zajac/errnotify/internal/api/http SyncNotifier
type SyncNotifier interface {
	NotifySync(ctx context.Context, err error, r *http.Request) (*notifier.Notice, error)
}

// TriggeredError is raised on purpose by the error route.
type TriggeredError string

// Error implements error interface.
func (e TriggeredError) Error() string {
	return string(e)
}

// NewErrorHandler creates handlerfunc that always panics.
// It allows checking error reporting of the whole middleware chain.
func NewErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		panic(TriggeredError("error triggered by request"))
	}
}

type pingResponse struct {
	Status string `json:"status"`
}

// NewPingHandler creates handlerfunc returning ok status.
func NewPingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, pingResponse{Status: "ok"})
	}
}

type notifyResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewNotifyHandler creates handlerfunc reporting error with message taken from url query.
// Responds with notice id, or status 204 when notice was filtered out.
func NewNotifyHandler(n SyncNotifier, l logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notice, err := notifyFromRequest(r, n)
		if err != nil {
			switch {
			case app.IsInvalidRequestError(err):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, notifier.ErrNoticeFiltered):
				w.WriteHeader(http.StatusNoContent)
			case app.IsTooManyRequestsError(err), errors.Is(err, notifier.ErrRateLimited):
				http.Error(w, "", http.StatusTooManyRequests)
			default:
				l.Errorf("notify handler: %v", err)
				http.Error(w, "", http.StatusBadGateway)
			}
			return
		}

		writeJSON(w, notifyResponse{
			ID:  notice.ID,
			URL: notice.URL,
		})
	}
}

func notifyFromRequest(r *http.Request, n SyncNotifier) (*notifier.Notice, error) {
	msg := r.URL.Query().Get("message")
	if msg == "" {
		return nil, app.InvalidRequestError("message param is required")
	}

	return n.NotifySync(r.Context(), errors.New(msg), r)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-type", "application/json; charset=utf-8")
	_ = jsoniter.ConfigFastest.NewEncoder(w).Encode(v)
}
