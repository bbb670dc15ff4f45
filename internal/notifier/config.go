package notifier

import (
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of environment variables read by ConfigFromEnv.
const EnvPrefix = "AIRBRAKE"

// Config is the container for notifier configuration.
type Config struct {
	// ProjectID - airbrake project id
	ProjectID int64 `default:"0"`

	// ProjectKey - airbrake project api key
	ProjectKey string `default:""`

	// Host - address of the error collecting api, with protocol
	Host string `default:"https://api.airbrake.io"`

	// Environment - name of the environment reported with every notice
	Environment string `default:"production"`

	// Revision - deployed code revision, optional
	Revision string `default:""`

	// RootDirectory - path prefix replaced with /PROJECT_ROOT in backtraces
	RootDirectory string `default:""`

	// KeysBlocklist - regexps of params, session and environment keys which values are not reported
	KeysBlocklist []string `default:"password,secret"`

	// IgnoreEnvironments - environments in which notices are never sent
	IgnoreEnvironments []string `default:""`

	// PerformanceStats - enables collecting route stats
	PerformanceStats bool `default:"true"`

	// ErrorNotifications - enables sending error notices
	ErrorNotifications bool `default:"true"`

	// Workers - number of goroutines sending queued notices
	Workers int `default:"10"`

	// QueueSize - maximum number of notices waiting to be sent
	QueueSize int `default:"1000"`

	// Timeout - timeout for a single api call
	Timeout time.Duration `default:"10s"`

	// RateLimit - maximum frequency of api calls per second, zero disables limiting
	RateLimit float64 `default:"10"`

	// RoutesFlushPeriod - how often aggregated route stats are sent
	RoutesFlushPeriod time.Duration `default:"15s"`

	// BacklogEnabled - enables storing notices which couldn't be sent
	BacklogEnabled bool `default:"false"`

	// BacklogPath - filepath for bolt db backlog data
	BacklogPath string `default:"./errnotify-backlog.data"`

	// BacklogMaxSize - maximum number of notices kept in backlog
	BacklogMaxSize int `default:"100"`

	// BacklogRetryPeriod - how often backlogged notices are resent
	BacklogRetryPeriod time.Duration `default:"1m"`
}

// DefaultConfig returns config with all default values set.
func DefaultConfig() Config {
	return Config{
		Host:               "https://api.airbrake.io",
		Environment:        "production",
		KeysBlocklist:      []string{"password", "secret"},
		PerformanceStats:   true,
		ErrorNotifications: true,
		Workers:            10,
		QueueSize:          1000,
		Timeout:            10 * time.Second,
		RateLimit:          10,
		RoutesFlushPeriod:  15 * time.Second,
		BacklogPath:        "./errnotify-backlog.data",
		BacklogMaxSize:     100,
		BacklogRetryPeriod: time.Minute,
	}
}

// ConfigFromEnv reads config from AIRBRAKE_* environment variables.
func ConfigFromEnv() (Config, error) {
	var c Config
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return Config{}, errors.Wrap(err, "processing env config")
	}

	return c, c.Validate()
}

// Validate checks config values.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return errors.New("workers count cannot be negative")
	}
	if c.QueueSize < 0 {
		return errors.New("queue size cannot be negative")
	}
	if c.RoutesFlushPeriod <= 0 {
		return errors.New("routes flush period must be greater than 0")
	}
	if c.BacklogEnabled {
		if c.BacklogMaxSize < 0 {
			return errors.New("backlog max size cannot be negative")
		}
		if c.BacklogRetryPeriod <= 0 {
			return errors.New("backlog retry period must be greater than 0")
		}
	}
	if _, err := compileBlocklist(c.KeysBlocklist); err != nil {
		return err
	}

	return nil
}

func compileBlocklist(keys []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		re, err := regexp.Compile(k)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid keys blocklist entry %q", k)
		}
		res = append(res, re)
	}

	return res, nil
}

func (c Config) clone() Config {
	c.KeysBlocklist = append([]string(nil), c.KeysBlocklist...)
	c.IgnoreEnvironments = append([]string(nil), c.IgnoreEnvironments...)

	return c
}
