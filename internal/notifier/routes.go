package notifier

import (
	"context"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RouteMetric measures a single handled request.
type RouteMetric struct {
	Method      string
	Route       string
	StatusCode  int
	ContentType string
	StartTime   time.Time
	EndTime     time.Time

	mu     sync.Mutex
	spans  map[string]time.Time
	groups map[string]time.Duration
}

// NewRouteMetric creates metric started now.
func NewRouteMetric(method, route string) *RouteMetric {
	return &RouteMetric{
		Method:    method,
		Route:     route,
		StartTime: time.Now(),
		spans:     make(map[string]time.Time),
		groups:    make(map[string]time.Duration),
	}
}

// StartSpan starts measuring time spent in named group, eg. "db" or "template".
func (m *RouteMetric) StartSpan(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.spans[name] = time.Now()
}

// EndSpan adds time elapsed since StartSpan to the group. Unknown spans are ignored.
func (m *RouteMetric) EndSpan(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, ok := m.spans[name]
	if !ok {
		return
	}
	delete(m.spans, name)
	m.groups[name] += time.Since(start)
}

// End marks metric as finished. Open spans are ended too.
func (m *RouteMetric) End() {
	m.mu.Lock()
	names := make([]string, 0, len(m.spans))
	for name := range m.spans {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.EndSpan(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		m.EndTime = time.Now()
	}
}

// Duration returns metric duration. Unfinished metric is measured until now.
func (m *RouteMetric) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// Groups returns copy of time spent per group.
func (m *RouteMetric) Groups() map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make(map[string]time.Duration, len(m.groups))
	for k, v := range m.groups {
		res[k] = v
	}
	return res
}

// ResponseType returns short response type used by breakdowns, eg. "json" or "5xx".
func (m *RouteMetric) ResponseType() string {
	if m.StatusCode >= 500 {
		return "5xx"
	}
	if m.ContentType == "" {
		return "other"
	}
	mediaType, _, err := mime.ParseMediaType(m.ContentType)
	if err != nil {
		return "other"
	}
	if i := strings.LastIndexAny(mediaType, "/+"); i >= 0 {
		mediaType = mediaType[i+1:]
	}
	return mediaType
}

// RouteStat is aggregated timing of one route, status code and minute.
type RouteStat struct {
	Method     string    `json:"method"`
	Route      string    `json:"route"`
	StatusCode int       `json:"statusCode"`
	Time       time.Time `json:"time"`
	Count      int       `json:"count"`
	Sum        float64   `json:"sum"`
	Sumsq      float64   `json:"sumsq"`
}

// GroupStat is aggregated timing of one breakdown group.
type GroupStat struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Sumsq float64 `json:"sumsq"`
}

// RouteBreakdown is aggregated timing of one route, response type and minute, split into groups.
type RouteBreakdown struct {
	Method       string                `json:"method"`
	Route        string                `json:"route"`
	ResponseType string                `json:"responseType"`
	Time         time.Time             `json:"time"`
	Count        int                   `json:"count"`
	Sum          float64               `json:"sum"`
	Sumsq        float64               `json:"sumsq"`
	Groups       map[string]*GroupStat `json:"groups"`
}

type routeStatKey struct {
	method     string
	route      string
	statusCode int
	time       time.Time
}

type routeBreakdownKey struct {
	method       string
	route        string
	responseType string
	time         time.Time
}

// Routes aggregates route metrics and periodically sends them.
type Routes struct {
	n *Notifier
	l logrus.FieldLogger

	mu         sync.Mutex
	stats      map[routeStatKey]*RouteStat
	breakdowns map[routeBreakdownKey]*RouteBreakdown
}

func newRoutes(n *Notifier, l logrus.FieldLogger) *Routes {
	return &Routes{
		n:          n,
		l:          l,
		stats:      make(map[routeStatKey]*RouteStat),
		breakdowns: make(map[routeBreakdownKey]*RouteBreakdown),
	}
}

// Notify adds finished metric to aggregates. Does nothing when performance stats are disabled.
func (r *Routes) Notify(_ context.Context, m *RouteMetric) error {
	if !r.n.Config().PerformanceStats {
		return nil
	}
	m.End()

	t := m.StartTime.UTC().Truncate(time.Minute)
	ms := durationMs(m.Duration())

	r.mu.Lock()
	defer r.mu.Unlock()

	sk := routeStatKey{method: m.Method, route: m.Route, statusCode: m.StatusCode, time: t}
	stat, ok := r.stats[sk]
	if !ok {
		stat = &RouteStat{
			Method:     m.Method,
			Route:      m.Route,
			StatusCode: m.StatusCode,
			Time:       t,
		}
		r.stats[sk] = stat
	}
	stat.Count++
	stat.Sum += ms
	stat.Sumsq += ms * ms

	bk := routeBreakdownKey{method: m.Method, route: m.Route, responseType: m.ResponseType(), time: t}
	bd, ok := r.breakdowns[bk]
	if !ok {
		bd = &RouteBreakdown{
			Method:       m.Method,
			Route:        m.Route,
			ResponseType: bk.responseType,
			Time:         t,
			Groups:       make(map[string]*GroupStat),
		}
		r.breakdowns[bk] = bd
	}
	bd.Count++
	bd.Sum += ms
	bd.Sumsq += ms * ms

	var groupsMs float64
	for name, d := range m.Groups() {
		gms := durationMs(d)
		groupsMs += gms
		addGroupStat(bd.Groups, name, gms)
	}
	if other := ms - groupsMs; other > 0 {
		addGroupStat(bd.Groups, "other", other)
	}

	r.n.metrics.routeMetrics.Inc()

	return nil
}

// Track runs fn and notifies the metric when fn returns.
// A panic in fn is not recovered: the metric is recorded with status 500 and the panic goes on.
func (r *Routes) Track(ctx context.Context, m *RouteMetric, fn func()) {
	completed := false
	defer func() {
		if !completed && m.StatusCode < 500 {
			m.StatusCode = 500
		}
		m.End()
		if err := r.Notify(ctx, m); err != nil {
			r.l.Warnf("notifying route metric: %v", err)
		}
	}()

	fn()
	completed = true
}

// Stats returns current route stats, sorted by route, method and status code.
func (r *Routes) Stats() []RouteStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedStats(r.stats)
}

// Breakdowns returns current route breakdowns, sorted by route, method and response type.
func (r *Routes) Breakdowns() []RouteBreakdown {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedBreakdowns(r.breakdowns)
}

// Flush sends aggregated data and resets aggregates. Data is dropped when sending fails.
func (r *Routes) Flush(ctx context.Context) error {
	r.mu.Lock()
	stats := sortedStats(r.stats)
	breakdowns := sortedBreakdowns(r.breakdowns)
	r.stats = make(map[routeStatKey]*RouteStat)
	r.breakdowns = make(map[routeBreakdownKey]*RouteBreakdown)
	r.mu.Unlock()

	if len(stats) == 0 && len(breakdowns) == 0 {
		return nil
	}

	sender := r.n.currentSender()
	if err := sender.SendRouteStats(ctx, stats); err != nil {
		return errors.Wrap(err, "sending route stats")
	}
	if err := sender.SendRouteBreakdowns(ctx, breakdowns); err != nil {
		return errors.Wrap(err, "sending route breakdowns")
	}

	return nil
}

func addGroupStat(groups map[string]*GroupStat, name string, ms float64) {
	g, ok := groups[name]
	if !ok {
		g = &GroupStat{}
		groups[name] = g
	}
	g.Count++
	g.Sum += ms
	g.Sumsq += ms * ms
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func sortedStats(m map[routeStatKey]*RouteStat) []RouteStat {
	res := make([]RouteStat, 0, len(m))
	for _, s := range m {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Route != res[j].Route {
			return res[i].Route < res[j].Route
		}
		if res[i].Method != res[j].Method {
			return res[i].Method < res[j].Method
		}
		if res[i].StatusCode != res[j].StatusCode {
			return res[i].StatusCode < res[j].StatusCode
		}
		return res[i].Time.Before(res[j].Time)
	})
	return res
}

func sortedBreakdowns(m map[routeBreakdownKey]*RouteBreakdown) []RouteBreakdown {
	res := make([]RouteBreakdown, 0, len(m))
	for _, b := range m {
		cp := *b
		cp.Groups = make(map[string]*GroupStat, len(b.Groups))
		for k, g := range b.Groups {
			gcp := *g
			cp.Groups[k] = &gcp
		}
		res = append(res, cp)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Route != res[j].Route {
			return res[i].Route < res[j].Route
		}
		if res[i].Method != res[j].Method {
			return res[i].Method < res[j].Method
		}
		if res[i].ResponseType != res[j].ResponseType {
			return res[i].ResponseType < res[j].ResponseType
		}
		return res[i].Time.Before(res[j].Time)
	})
	return res
}
