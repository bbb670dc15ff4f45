// Package notifier captures errors and panics, turns them into notices and reports them
// to an airbrake compatible api. It also aggregates per route performance stats.
package notifier

import (
	"context"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"sync"
	"time"

	"github.com/m-zajac/errnotify/internal/database"
	"github.com/m-zajac/errnotify/internal/limiter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	// Name is reported in notice context.
	Name = "errnotify"
	// Version is reported in notice context.
	Version = "1.0.0"

	notifierURL        = "https://github.com/m-zajac/errnotify"
	codeCacheSize      = 128
	backlogBucket      = "notices"
	closeFlushDeadline = 5 * time.Second
)

func noticeUserAgent() string {
	return Name + "/" + Version
}

// Notifier builds, filters and sends notices.
type Notifier struct {
	l logrus.FieldLogger

	mu        sync.RWMutex
	config    Config
	blocklist []*regexp.Regexp
	filters   []Filter
	sender    Sender
	closed    bool

	routes    *Routes
	backlog   *backlog
	backtrace *backtraceBuilder
	metrics   *metrics
	hostname  string

	// storeCloser is set only when the backlog store was opened by the notifier.
	storeCloser func() error

	queue chan queuedNotice

	// pending counts queued and in-flight notices. drained is closed when it drops to zero.
	pendingMu sync.Mutex
	pending   int
	drained   chan struct{}

	workersDone sync.WaitGroup
	bgDone      sync.WaitGroup
	stop        func()
	closeOnce   sync.Once
	closeErr    error
}

type queuedNotice struct {
	notice *Notice
}

// Option configures Notifier.
type Option func(*options)

type options struct {
	sender Sender
	store  KVStore
}

// WithSender replaces default http sender.
func WithSender(s Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// WithBacklogStore sets store used for backlog instead of opening bolt db at Config.BacklogPath.
// Backlog still has to be enabled in config.
func WithBacklogStore(s KVStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// New creates new Notifier instance and starts its background goroutines.
func New(c Config, l logrus.FieldLogger, opts ...Option) (*Notifier, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	blocklist, _ := compileBlocklist(c.KeysBlocklist)

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.sender == nil {
		httpClient := &http.Client{
			Timeout: c.Timeout,
		}
		o.sender = NewHTTPSender(limiter.NewHTTPDoer(httpClient, c.RateLimit), c)
	}

	bt, err := newBacktraceBuilder(c.RootDirectory, codeCacheSize)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()

	n := &Notifier{
		l:         l,
		config:    c.clone(),
		blocklist: blocklist,
		sender:    o.sender,
		backtrace: bt,
		metrics:   newMetrics(),
		hostname:  hostname,
	}
	n.routes = newRoutes(n, l.WithField("component", "routes"))

	if c.BacklogEnabled {
		store := o.store
		if store == nil {
			boltStore, err := database.NewBoltKVStore(c.BacklogPath, backlogBucket)
			if err != nil {
				return nil, errors.Wrap(err, "opening backlog store")
			}
			store = boltStore
			n.storeCloser = boltStore.Close
		}
		n.backlog, err = newBacklog(store, c.BacklogMaxSize, n.metrics, l.WithField("component", "backlog"))
		if err != nil {
			if n.storeCloser != nil {
				_ = n.storeCloser()
			}
			return nil, err
		}
	}

	n.run()

	return n, nil
}

func (n *Notifier) run() {
	c := n.config
	workers := c.Workers
	if workers == 0 {
		workers = 1
	}

	n.queue = make(chan queuedNotice, c.QueueSize)
	for i := 0; i < workers; i++ {
		n.workersDone.Add(1)
		go func() {
			defer n.workersDone.Done()
			for qn := range n.queue {
				n.sendQueued(qn)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.stop = cancel

	n.bgDone.Add(1)
	go func() {
		defer n.bgDone.Done()
		n.loop(ctx, c.RoutesFlushPeriod, n.flushRoutes)
	}()

	if n.backlog != nil {
		n.bgDone.Add(1)
		go func() {
			defer n.bgDone.Done()
			n.loop(ctx, c.BacklogRetryPeriod, n.RetryBacklog)
		}()
	}
}

func (n *Notifier) loop(ctx context.Context, period time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, n.Config().Timeout)
			if err := fn(callCtx); err != nil {
				n.l.Warnf("notifier background job: %v", err)
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

func (n *Notifier) flushRoutes(ctx context.Context) error {
	return n.routes.Flush(ctx)
}

// Config returns copy of current config.
func (n *Notifier) Config() Config {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.config.clone()
}

// UpdateConfig changes config at runtime.
// Only filtering and notice building settings take effect, workers, queue and backlog keep their initial setup.
// Invalid config is rejected and the current one stays in place.
func (n *Notifier) UpdateConfig(update func(*Config)) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	c := n.config.clone()
	update(&c)
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	blocklist, _ := compileBlocklist(c.KeysBlocklist)

	n.config = c
	n.blocklist = blocklist
	n.backtrace.rootDirectory = c.RootDirectory

	return nil
}

// SetSender replaces sender used for notices and route stats.
func (n *Notifier) SetSender(s Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sender = s
}

func (n *Notifier) currentSender() Sender {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.sender
}

// Routes returns route stats aggregator.
func (n *Notifier) Routes() *Routes {
	return n.routes
}

// Registry returns prometheus registry with notifier metrics.
func (n *Notifier) Registry() *prometheus.Registry {
	return n.metrics.registry
}

// BuildNotice creates notice describing err.
// Backtrace is taken from the error when it carries one (PanicError, pkg/errors),
// otherwise it's the current stack of the caller.
// Nil err is described as ErrNilError.
func (n *Notifier) BuildNotice(err error) *Notice {
	var pcs []uintptr
	if err == nil {
		err = ErrNilError
	} else {
		pcs = errorStack(err)
	}
	if pcs == nil {
		pcs = callerStack()
	}

	n.mu.RLock()
	c := n.config
	backtrace := n.backtrace.build(pcs)
	n.mu.RUnlock()

	notice := newNotice()
	notice.Error = err
	notice.Errors = []NoticeError{{
		Type:      errorType(err),
		Message:   err.Error(),
		Backtrace: backtrace,
	}}

	notice.Context["notifier"] = map[string]interface{}{
		"name":    Name,
		"version": Version,
		"url":     notifierURL,
	}
	notice.Context["os"] = runtime.GOOS + "/" + runtime.GOARCH
	notice.Context["language"] = runtime.Version()
	notice.Context["environment"] = c.Environment
	if n.hostname != "" {
		notice.Context["hostname"] = n.hostname
	}
	if c.Revision != "" {
		notice.Context["revision"] = c.Revision
	}
	if c.RootDirectory != "" {
		notice.Context["rootDirectory"] = c.RootDirectory
	}

	return notice
}

// NotifySync builds notice for err and sends it synchronously.
// Request is optional. Returns ErrNoticeFiltered when notice was rejected by filters.
func (n *Notifier) NotifySync(ctx context.Context, err error, r *http.Request) (*Notice, error) {
	if err == nil {
		return nil, ErrNilError
	}
	if n.isClosed() {
		return nil, ErrClosed
	}

	notice := n.BuildNotice(err)
	if r != nil {
		notice.SetRequest(r)
	}

	notice, ok := n.FilterNotice(notice)
	if !ok {
		n.metrics.notice(statusFiltered)
		return nil, ErrNoticeFiltered
	}

	return n.send(ctx, notice)
}

// Notify builds notice for err and queues it for sending. Request is optional.
func (n *Notifier) Notify(ctx context.Context, err error, r *http.Request) error {
	if err == nil {
		return ErrNilError
	}
	notice := n.BuildNotice(err)
	if r != nil {
		notice.SetRequest(r)
	}

	return n.SendNotice(ctx, notice)
}

// SendNotice filters notice and queues it for sending.
// Filtered notice is silently dropped.
func (n *Notifier) SendNotice(ctx context.Context, notice *Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	notice, ok := n.FilterNotice(notice)
	if !ok {
		n.metrics.notice(statusFiltered)
		return nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return ErrClosed
	}

	n.addPending()
	select {
	case n.queue <- queuedNotice{notice: notice}:
		return nil
	default:
		n.donePending()
		n.metrics.notice(statusDropped)
		return ErrQueueFull
	}
}

func (n *Notifier) sendQueued(qn queuedNotice) {
	defer n.donePending()

	ctx, cancel := context.WithTimeout(context.Background(), n.Config().Timeout)
	defer cancel()

	if _, err := n.send(ctx, qn.notice); err != nil {
		n.l.Warnf("sending queued notice: %v", err)
	}
}

func (n *Notifier) send(ctx context.Context, notice *Notice) (*Notice, error) {
	sent, err := n.currentSender().SendNotice(ctx, notice)
	if err == nil {
		n.metrics.notice(statusSent)
		return sent, nil
	}

	n.metrics.notice(statusFailed)
	if n.backlog != nil && !isPermanent(err) {
		if berr := n.backlog.push(notice); berr != nil {
			n.l.Warnf("storing notice in backlog: %v", berr)
		} else {
			n.metrics.notice(statusBacklogged)
		}
	}

	return nil, errors.Wrap(err, "sending notice")
}

// RetryBacklog resends backlogged notices. Does nothing when backlog is disabled.
func (n *Notifier) RetryBacklog(ctx context.Context) error {
	if n.backlog == nil {
		return nil
	}

	sent, err := n.backlog.retry(ctx, n.currentSender().SendNotice)
	if sent > 0 {
		n.l.Infof("resent %d backlogged notices", sent)
	}
	return err
}

// Flush waits until all queued notices are sent.
// Returns false if timeout passed first.
func (n *Notifier) Flush(timeout time.Duration) bool {
	n.pendingMu.Lock()
	if n.pending == 0 {
		n.pendingMu.Unlock()
		return true
	}
	drained := n.drained
	n.pendingMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-drained:
		return true
	case <-timer.C:
		return false
	}
}

func (n *Notifier) addPending() {
	n.pendingMu.Lock()
	defer n.pendingMu.Unlock()

	if n.pending == 0 {
		n.drained = make(chan struct{})
	}
	n.pending++
}

func (n *Notifier) donePending() {
	n.pendingMu.Lock()
	defer n.pendingMu.Unlock()

	n.pending--
	if n.pending == 0 {
		close(n.drained)
	}
}

func (n *Notifier) isClosed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.closed
}

// Close sends queued notices and route stats, then stops all goroutines.
// It's safe to call Close multiple times.
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()

		n.stop()
		n.bgDone.Wait()
		n.workersDone.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), closeFlushDeadline)
		defer cancel()
		if err := n.routes.Flush(ctx); err != nil {
			n.l.Warnf("flushing route stats on close: %v", err)
		}

		if n.storeCloser != nil {
			n.closeErr = n.storeCloser()
		}
	})

	return n.closeErr
}
