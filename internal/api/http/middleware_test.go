package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/m-zajac/errnotify/internal/notifier"
	notifiermock "github.com/m-zajac/errnotify/internal/notifier/mock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func newTestNotifier(t *testing.T, sender notifier.Sender, update func(*notifier.Config)) *notifier.Notifier {
	t.Helper()

	c := notifier.DefaultConfig()
	c.Workers = 1
	if update != nil {
		update(&c)
	}

	n, err := notifier.New(c, newLogger(), notifier.WithSender(sender))
	require.NoError(t, err)
	t.Cleanup(func() {
		n.Close()
	})

	return n
}

// errorReportingSuite runs requests against the process-wide notifier.
// Its sender is a mock that answers without any I/O and expects exactly one notice per test.
type errorReportingSuite struct {
	suite.Suite

	restoreGlobal func()
	ctrl          *gomock.Controller
	n             *notifier.Notifier
}

func TestErrorReporting(t *testing.T) {
	suite.Run(t, new(errorReportingSuite))
}

func (s *errorReportingSuite) SetupTest() {
	s.restoreGlobal = notifier.SnapshotGlobal()
	notifier.ResetGlobal()

	s.ctrl = gomock.NewController(s.T())
	sender := notifiermock.NewMockSender(s.ctrl)
	sender.EXPECT().
		SendNotice(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, notice *notifier.Notice) (*notifier.Notice, error) {
			return notice, nil
		}).
		Times(1)
	sender.EXPECT().SendRouteStats(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	sender.EXPECT().SendRouteBreakdowns(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s.n = notifier.Global()
	s.n.SetSender(sender)
}

func (s *errorReportingSuite) TearDownTest() {
	s.True(s.n.Flush(time.Second), "queued notices should be sent")
	s.restoreGlobal()
	s.ctrl.Finish()
}

func (s *errorReportingSuite) setPerformanceStats(enabled bool) {
	err := s.n.UpdateConfig(func(c *notifier.Config) {
		c.PerformanceStats = enabled
	})
	s.Require().NoError(err)
}

// serveRaising serves request and returns the error it raised.
func (s *errorReportingSuite) serveRaising(method, path string) (raised error) {
	mux := NewMux(notifier.Global(), time.Second, newLogger(), WithRepanic())
	r := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()

	defer func() {
		v := recover()
		s.Require().NotNil(v, "request to %s should raise", path)

		perr, ok := v.(*notifier.PanicError)
		s.Require().True(ok, "raised value should be *notifier.PanicError, got %T", v)
		raised = perr
	}()

	mux.ServeHTTP(w, r)
	return nil
}

// assertNotifies checks that notice built from err passes all filters.
func (s *errorReportingSuite) assertNotifies(err error) {
	n := notifier.Global()
	notice := n.BuildNotice(err)
	s.Require().NotEmpty(notice.Errors)

	_, ok := n.FilterNotice(notice)
	s.True(ok, "notice for %q should not be filtered", err)
}

func (s *errorReportingSuite) TestWithoutPerformanceMonitoring() {
	s.setPerformanceStats(false)

	err := s.serveRaising(http.MethodGet, "/err/")
	s.assertNotifies(err)
	s.Empty(s.n.Routes().Stats())
}

func (s *errorReportingSuite) TestWithPerformanceMonitoring() {
	s.setPerformanceStats(true)

	err := s.serveRaising(http.MethodGet, "/err/")
	s.assertNotifies(err)

	stats := s.n.Routes().Stats()
	s.Require().Len(stats, 1)
	s.Equal(http.MethodGet, stats[0].Method)
	s.Equal("/err/", stats[0].Route)
	s.Equal(http.StatusInternalServerError, stats[0].StatusCode)
	s.Equal(1, stats[0].Count)
}

func (s *errorReportingSuite) TestRaisedErrorPointsAtHandler() {
	err := s.serveRaising(http.MethodGet, "/err/")

	notice := s.n.BuildNotice(err)
	s.Require().NotEmpty(notice.Errors)
	e := notice.Errors[0]
	s.Equal("http.TriggeredError", e.Type)
	s.Equal("error triggered by request", e.Message)
	s.Require().NotEmpty(e.Backtrace)

	// Handler may be inlined into NewMux, so only the closure's origin is stable in its name.
	top := e.Backtrace[0]
	s.True(strings.HasSuffix(top.File, "internal/api/http/handlers.go"), "top frame file: %s", top.File)
	s.Contains(top.Func, "NewErrorHandler")
	s.Contains(top.Code[top.Line], "panic(")
}

func TestNotifierMiddleware_ReportsPanic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sent := make(chan *notifier.Notice, 1)
	sender := notifiermock.NewMockSender(ctrl)
	sender.EXPECT().
		SendNotice(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, notice *notifier.Notice) (*notifier.Notice, error) {
			sent <- notice
			return notice, nil
		})
	sender.EXPECT().SendRouteStats(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	sender.EXPECT().SendRouteBreakdowns(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	n := newTestNotifier(t, sender, nil)
	mux := NewMux(n, time.Second, newLogger())

	r := httptest.NewRequest(http.MethodGet, "/err/?password=hunter2&page=2", nil)
	r.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.True(t, n.Flush(time.Second))

	var notice *notifier.Notice
	select {
	case notice = <-sent:
	case <-time.After(time.Second):
		t.Fatal("notice wasn't sent")
	}

	assert.Equal(t, "/err/", notice.Context["route"])
	assert.Equal(t, "http", notice.Context["component"])
	assert.Equal(t, http.MethodGet, notice.Context["httpMethod"])
	assert.Equal(t, "test-agent", notice.Context["userAgent"])
	assert.Equal(t, "[Filtered]", notice.Params["password"])
	assert.Equal(t, "2", notice.Params["page"])
}

func TestNotifierMiddleware_NoPanic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No notice is expected.
	sender := notifiermock.NewMockSender(ctrl)
	sender.EXPECT().SendRouteStats(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	sender.EXPECT().SendRouteBreakdowns(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	n := newTestNotifier(t, sender, nil)
	middleware := NewNotifierMiddleware(n, "/created/", newLogger(), true)
	h := middleware(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/created/", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.True(t, n.Flush(time.Second))

	stats := n.Routes().Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, http.MethodPost, stats[0].Method)
	assert.Equal(t, http.StatusCreated, stats[0].StatusCode)

	breakdowns := n.Routes().Breakdowns()
	require.Len(t, breakdowns, 1)
	assert.Equal(t, "json", breakdowns[0].ResponseType)
}

func TestNotifierMiddleware_HeaderAlreadyWritten(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(t, notifier.NullSender{}, func(c *notifier.Config) {
		c.PerformanceStats = false
	})
	middleware := NewNotifierMiddleware(n, "/partial/", newLogger(), false)
	h := middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("after header")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h(w, httptest.NewRequest(http.MethodGet, "/partial/", nil))
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, n.Routes().Stats())
}

func TestNewTimeoutMiddleware(t *testing.T) {
	t.Parallel()

	var deadline time.Time
	var hasDeadline bool
	h := NewTimeoutMiddleware(time.Minute)(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}
