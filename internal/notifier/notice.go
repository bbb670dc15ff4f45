package notifier

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// Notice is a single captured error report.
type Notice struct {
	// ID and URL are assigned by the api when the notice is accepted.
	ID  string `json:"-"`
	URL string `json:"-"`

	Errors  []NoticeError          `json:"errors"`
	Context map[string]interface{} `json:"context"`
	Env     map[string]interface{} `json:"environment"`
	Session map[string]interface{} `json:"session"`
	Params  map[string]interface{} `json:"params"`

	// Error is the error the notice was built from. It is not serialized.
	Error error `json:"-"`
}

// NoticeError describes one error of the notice.
type NoticeError struct {
	Type      string       `json:"type"`
	Message   string       `json:"message"`
	Backtrace []StackFrame `json:"backtrace"`
}

// StackFrame is a single backtrace entry.
type StackFrame struct {
	File string         `json:"file"`
	Line int            `json:"line"`
	Func string         `json:"function"`
	Code map[int]string `json:"code,omitempty"`
}

func newNotice() *Notice {
	return &Notice{
		Context: map[string]interface{}{
			"severity": "error",
			"time":     time.Now().UTC().Format(time.RFC3339),
		},
		Env:     make(map[string]interface{}),
		Session: make(map[string]interface{}),
		Params:  make(map[string]interface{}),
	}
}

// SetSeverity overrides default "error" severity.
func (n *Notice) SetSeverity(severity string) {
	n.Context["severity"] = severity
}

// SetRoute sets route name, eg. url pattern or grpc method.
func (n *Notice) SetRoute(route string) {
	n.Context["route"] = route
}

// SetComponent sets name of the component that reported the error.
func (n *Notice) SetComponent(component string) {
	n.Context["component"] = component
}

// SetRequest copies request details into the notice.
// Request body is never read, form values are used only when already parsed.
func (n *Notice) SetRequest(r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = scheme
	}

	n.Context["url"] = u.String()
	n.Context["httpMethod"] = r.Method
	if ua := r.UserAgent(); ua != "" {
		n.Context["userAgent"] = ua
	}
	if addr := requestAddr(r); addr != "" {
		n.Context["userAddr"] = addr
	}

	for k, v := range r.URL.Query() {
		n.Params[k] = paramValue(v)
	}
	for k, v := range r.PostForm {
		n.Params[k] = paramValue(v)
	}
	for k, v := range r.Header {
		n.Env[k] = strings.Join(v, ", ")
	}
}

func paramValue(v []string) interface{} {
	if len(v) == 1 {
		return v[0]
	}
	return v
}

func requestAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
