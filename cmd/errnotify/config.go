package main

import "time"

// Config is the container for app configuration
type Config struct {
	// HTTPServerAddress - listen address for http server
	HTTPServerAddress string `default:"0.0.0.0:8080"`

	// HTTPProfileServerAddress - listen address for profiler http server. If empty, profiler server is disabled
	HTTPProfileServerAddress string `default:""`

	// GRPCServerAddress - listen address for grpc server
	GRPCServerAddress string `default:"0.0.0.0:9090"`

	// HandlerTimeout - timeout for http handlers execution
	HandlerTimeout time.Duration `default:"30s"`

	// NotifierFlushTimeout - how long queued notices are sent on shutdown
	NotifierFlushTimeout time.Duration `default:"5s"`

	// LogLevel - logrus log level name
	LogLevel string `default:"info"`
}
