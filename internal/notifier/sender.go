package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	noticeResponseMaxSize = 64 * 1024
	defaultRateLimitDelay = time.Minute
)

// Sender delivers notices and route stats to the error collecting api.
//go:generate mockgen -destination mock/sender.go -package mock github.com/m-zajac/errnotify/internal/notifier Sender
type Sender interface {
	SendNotice(ctx context.Context, notice *Notice) (*Notice, error)
	SendRouteStats(ctx context.Context, stats []RouteStat) error
	SendRouteBreakdowns(ctx context.Context, breakdowns []RouteBreakdown) error
}

// NullSender accepts everything and sends nothing.
type NullSender struct{}

var _ Sender = NullSender{}

// SendNotice returns notice unchanged.
func (NullSender) SendNotice(_ context.Context, notice *Notice) (*Notice, error) {
	return notice, nil
}

// SendRouteStats does nothing.
func (NullSender) SendRouteStats(context.Context, []RouteStat) error {
	return nil
}

// SendRouteBreakdowns does nothing.
func (NullSender) SendRouteBreakdowns(context.Context, []RouteBreakdown) error {
	return nil
}

// HTTPDoer can execute http request.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPSender is a Sender posting json payloads to airbrake compatible api.
type HTTPSender struct {
	doer        HTTPDoer
	host        string
	projectID   int64
	projectKey  string
	environment string

	mu             sync.Mutex
	rateLimitReset time.Time
	now            func() time.Time
}

var _ Sender = &HTTPSender{}

// NewHTTPSender creates new HTTPSender instance.
func NewHTTPSender(doer HTTPDoer, c Config) *HTTPSender {
	return &HTTPSender{
		doer:        doer,
		host:        c.Host,
		projectID:   c.ProjectID,
		projectKey:  c.ProjectKey,
		environment: c.Environment,
		now:         time.Now,
	}
}

type noticeResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// SendNotice posts notice to the api. Returned notice has ID and URL set.
func (s *HTTPSender) SendNotice(ctx context.Context, notice *Notice) (*Notice, error) {
	u := fmt.Sprintf("%s/api/v3/projects/%d/notices", s.host, s.projectID)
	code, body, err := s.post(ctx, u, notice)
	if err != nil {
		return nil, err
	}

	var resp noticeResponse
	if len(body) > 0 {
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &resp); err != nil && code == http.StatusCreated {
			return nil, errors.Wrap(err, "unmarshalling notice response")
		}
	}

	switch {
	case code == http.StatusCreated:
		notice.ID = resp.ID
		notice.URL = resp.URL
		return notice, nil
	case code == http.StatusBadRequest:
		return nil, BadRequestError(resp.Message)
	default:
		return nil, StatusError(code)
	}
}

type routesPayload struct {
	Environment string      `json:"environment"`
	Routes      interface{} `json:"routes"`
}

// SendRouteStats posts aggregated route stats.
func (s *HTTPSender) SendRouteStats(ctx context.Context, stats []RouteStat) error {
	u := fmt.Sprintf("%s/api/v5/projects/%d/routes-stats", s.host, s.projectID)
	return s.postRoutes(ctx, u, stats)
}

// SendRouteBreakdowns posts aggregated route breakdowns.
func (s *HTTPSender) SendRouteBreakdowns(ctx context.Context, breakdowns []RouteBreakdown) error {
	u := fmt.Sprintf("%s/api/v5/projects/%d/routes-breakdowns", s.host, s.projectID)
	return s.postRoutes(ctx, u, breakdowns)
}

func (s *HTTPSender) postRoutes(ctx context.Context, u string, routes interface{}) error {
	code, _, err := s.post(ctx, u, routesPayload{
		Environment: s.environment,
		Routes:      routes,
	})
	if err != nil {
		return err
	}
	if code/100 != 2 {
		return StatusError(code)
	}
	return nil
}

// post sends payload and handles statuses common for all endpoints.
func (s *HTTPSender) post(ctx context.Context, u string, payload interface{}) (int, []byte, error) {
	if s.projectID == 0 || s.projectKey == "" {
		return 0, nil, ErrMissingCredentials
	}
	if s.rateLimited() {
		return 0, nil, ErrRateLimited
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
	if err != nil {
		return 0, nil, errors.Wrap(err, "marshalling payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return 0, nil, errors.Wrap(err, "creating http request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.projectKey)
	req.Header.Set("User-Agent", noticeUserAgent())

	resp, err := s.doer.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "doing http request")
	}
	// Always drain body before close to allow connection reuse.
	defer func() {
		_, _ = io.CopyN(io.Discard, resp.Body, 1024)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return resp.StatusCode, nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		s.setRateLimited(resp.Header.Get("X-RateLimit-Delay"))
		return resp.StatusCode, nil, ErrRateLimited
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, noticeResponseMaxSize))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "reading http response body")
	}

	return resp.StatusCode, body, nil
}

func (s *HTTPSender) rateLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now().Before(s.rateLimitReset)
}

func (s *HTTPSender) setRateLimited(delayHeader string) {
	delay := defaultRateLimitDelay
	if secs, err := strconv.Atoi(delayHeader); err == nil && secs > 0 {
		delay = time.Duration(secs) * time.Second
	}

	s.mu.Lock()
	s.rateLimitReset = s.now().Add(delay)
	s.mu.Unlock()
}
