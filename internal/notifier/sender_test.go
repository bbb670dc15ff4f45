package notifier_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/m-zajac/errnotify/internal/mock"
	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSenderConfig() notifier.Config {
	c := notifier.DefaultConfig()
	c.Host = "https://api.test"
	c.ProjectID = 42
	c.ProjectKey = "key"
	c.Environment = "test"
	return c
}

func TestHTTPSender_SendNotice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  func(*notifier.Config)
		doer    *mock.HTTPDoer
		wantID  string
		wantErr error
		wantAny bool
		noCalls bool
	}{
		{
			name: "created",
			doer: &mock.HTTPDoer{
				Statuses: []int{http.StatusCreated},
				Bodies:   [][]byte{[]byte(`{"id":"1","url":"https://api.test/1"}`)},
			},
			wantID: "1",
		},
		{
			name: "missing credentials",
			config: func(c *notifier.Config) {
				c.ProjectKey = ""
			},
			doer:    &mock.HTTPDoer{},
			wantErr: notifier.ErrMissingCredentials,
			noCalls: true,
		},
		{
			name: "unauthorized",
			doer: &mock.HTTPDoer{
				Statuses: []int{http.StatusUnauthorized},
			},
			wantErr: notifier.ErrUnauthorized,
		},
		{
			name: "rate limited",
			doer: &mock.HTTPDoer{
				Statuses: []int{http.StatusTooManyRequests},
				Headers:  []http.Header{{"X-Ratelimit-Delay": []string{"30"}}},
			},
			wantErr: notifier.ErrRateLimited,
		},
		{
			name: "bad request",
			doer: &mock.HTTPDoer{
				Statuses: []int{http.StatusBadRequest},
				Bodies:   [][]byte{[]byte(`{"message":"invalid notice"}`)},
			},
			wantErr: notifier.BadRequestError("invalid notice"),
		},
		{
			name: "server error",
			doer: &mock.HTTPDoer{
				Statuses: []int{http.StatusBadGateway},
			},
			wantErr: notifier.StatusError(http.StatusBadGateway),
		},
		{
			name: "doer error",
			doer: &mock.HTTPDoer{
				DoFunc: func(*http.Request) (*http.Response, error) {
					return nil, errors.New("connection refused")
				},
			},
			wantAny: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := testSenderConfig()
			if tt.config != nil {
				tt.config(&c)
			}
			s := notifier.NewHTTPSender(tt.doer, c)

			notice := &notifier.Notice{
				Errors: []notifier.NoticeError{{Type: "error", Message: "test"}},
			}
			got, err := s.SendNotice(context.Background(), notice)

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got error: %v", err)
			case tt.wantAny:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
			}

			if tt.noCalls {
				assert.Equal(t, 0, tt.doer.Calls())
			}
		})
	}
}

func TestHTTPSender_Request(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotReq *http.Request
	doer := &mock.HTTPDoer{
		DoFunc: func(r *http.Request) (*http.Response, error) {
			gotReq = r
			gotBody, _ = io.ReadAll(r.Body)
			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(bytes.NewBufferString(`{"id":"7"}`)),
				Header:     http.Header{},
			}, nil
		},
	}
	s := notifier.NewHTTPSender(doer, testSenderConfig())

	notice := &notifier.Notice{
		Errors: []notifier.NoticeError{{
			Type:    "*errors.errorString",
			Message: "boom",
			Backtrace: []notifier.StackFrame{
				{File: "/PROJECT_ROOT/main.go", Line: 10, Func: "main.main"},
			},
		}},
		Context: map[string]interface{}{"severity": "error"},
		Params:  map[string]interface{}{"q": "1"},
	}
	_, err := s.SendNotice(context.Background(), notice)
	require.NoError(t, err)

	require.NotNil(t, gotReq)
	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "https://api.test/api/v3/projects/42/notices", gotReq.URL.String())
	assert.Equal(t, "Bearer key", gotReq.Header.Get("Authorization"))
	assert.Equal(t, "application/json", gotReq.Header.Get("Content-Type"))

	var payload map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(gotBody, &payload))
	errs, ok := payload["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "boom", first["message"])
	bt := first["backtrace"].([]interface{})
	assert.Equal(t, "main.main", bt[0].(map[string]interface{})["function"])
	assert.NotContains(t, payload, "Error")
}

func TestHTTPSender_RateLimitReset(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{
		Statuses: []int{http.StatusTooManyRequests, http.StatusCreated},
		Bodies:   [][]byte{nil, []byte(`{"id":"1"}`)},
		Headers:  []http.Header{{"X-Ratelimit-Delay": []string{"1"}}, {}},
	}
	s := notifier.NewHTTPSender(doer, testSenderConfig())
	notice := &notifier.Notice{}

	_, err := s.SendNotice(context.Background(), notice)
	assert.True(t, errors.Is(err, notifier.ErrRateLimited))

	// Api is not called while rate limit is in effect.
	_, err = s.SendNotice(context.Background(), notice)
	assert.True(t, errors.Is(err, notifier.ErrRateLimited))
	assert.Equal(t, 1, doer.Calls())

	time.Sleep(1100 * time.Millisecond)
	_, err = s.SendNotice(context.Background(), notice)
	require.NoError(t, err)
	assert.Equal(t, 2, doer.Calls())
}

func TestHTTPSender_SendRoutes(t *testing.T) {
	t.Parallel()

	var urls []string
	var bodies []map[string]interface{}
	doer := &mock.HTTPDoer{
		DoFunc: func(r *http.Request) (*http.Response, error) {
			urls = append(urls, r.URL.String())
			var body map[string]interface{}
			_ = jsoniter.NewDecoder(r.Body).Decode(&body)
			bodies = append(bodies, body)
			return &http.Response{
				StatusCode: http.StatusNoContent,
				Body:       io.NopCloser(bytes.NewReader(nil)),
				Header:     http.Header{},
			}, nil
		},
	}
	s := notifier.NewHTTPSender(doer, testSenderConfig())

	now := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SendRouteStats(context.Background(), []notifier.RouteStat{
		{Method: "GET", Route: "/ping/", StatusCode: 200, Time: now, Count: 1, Sum: 2, Sumsq: 4},
	}))
	require.NoError(t, s.SendRouteBreakdowns(context.Background(), []notifier.RouteBreakdown{
		{Method: "GET", Route: "/ping/", ResponseType: "json", Time: now, Count: 1},
	}))

	assert.Equal(t, []string{
		"https://api.test/api/v5/projects/42/routes-stats",
		"https://api.test/api/v5/projects/42/routes-breakdowns",
	}, urls)
	require.Len(t, bodies, 2)
	assert.Equal(t, "test", bodies[0]["environment"])
	routes := bodies[0]["routes"].([]interface{})
	require.Len(t, routes, 1)
	assert.Equal(t, "/ping/", routes[0].(map[string]interface{})["route"])
	assert.Equal(t, "2020-01-01T10:00:00Z", routes[0].(map[string]interface{})["time"])
}

func TestHTTPSender_SendRoutesError(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{
		Statuses: []int{http.StatusInternalServerError},
	}
	s := notifier.NewHTTPSender(doer, testSenderConfig())

	err := s.SendRouteStats(context.Background(), []notifier.RouteStat{{Route: "/"}})
	assert.True(t, errors.Is(err, notifier.StatusError(http.StatusInternalServerError)))
}
