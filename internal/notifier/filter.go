package notifier

import (
	"regexp"
	"strings"
)

const filteredValue = "[Filtered]"

// Filter can modify notice or reject it by returning nil.
type Filter func(*Notice) *Notice

// AddFilter appends filter run by FilterNotice after the built-in ones.
func (n *Notifier) AddFilter(f Filter) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.filters = append(n.filters, f)
}

// FilterNotice runs all filters on the notice.
// Returns possibly modified notice and false when any filter rejected it.
// Filtering doesn't change notifier state, so the same notice gives the same result every time.
func (n *Notifier) FilterNotice(notice *Notice) (*Notice, bool) {
	n.mu.RLock()
	c := n.config
	blocklist := n.blocklist
	filters := make([]Filter, 0, 4+len(n.filters))
	filters = append(filters,
		notificationsFilter(c.ErrorNotifications),
		environmentFilter(c.Environment, c.IgnoreEnvironments),
		internalOriginFilter,
		blocklistFilter(blocklist),
	)
	filters = append(filters, n.filters...)
	n.mu.RUnlock()

	for _, f := range filters {
		if notice = f(notice); notice == nil {
			return nil, false
		}
	}

	return notice, true
}

func notificationsFilter(enabled bool) Filter {
	return func(notice *Notice) *Notice {
		if !enabled {
			return nil
		}
		return notice
	}
}

func environmentFilter(env string, ignored []string) Filter {
	return func(notice *Notice) *Notice {
		noticeEnv := env
		if e, ok := notice.Context["environment"].(string); ok {
			noticeEnv = e
		}
		for _, ie := range ignored {
			if ie == noticeEnv {
				return nil
			}
		}
		return notice
	}
}

// internalOriginFilter rejects notices about errors raised by the notifier itself,
// so a failing notifier doesn't report itself in a loop.
// Only the innermost frame is checked: notifier frames deeper in the stack
// come from instrumentation wrapping the real origin.
func internalOriginFilter(notice *Notice) *Notice {
	if len(notice.Errors) == 0 || len(notice.Errors[0].Backtrace) == 0 {
		return notice
	}
	if strings.HasPrefix(notice.Errors[0].Backtrace[0].Func, pkgPrefix) {
		return nil
	}
	return notice
}

func blocklistFilter(blocklist []*regexp.Regexp) Filter {
	return func(notice *Notice) *Notice {
		if len(blocklist) == 0 {
			return notice
		}
		for _, m := range []map[string]interface{}{notice.Params, notice.Session, notice.Env} {
			for k := range m {
				for _, re := range blocklist {
					if re.MatchString(k) {
						m[k] = filteredValue
						break
					}
				}
			}
		}
		return notice
	}
}
