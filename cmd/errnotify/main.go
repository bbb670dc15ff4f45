// Package main runs http and grpc servers reporting their errors with the notifier.
// Notifier is configured with AIRBRAKE_* environment variables.
package main

import (
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/m-zajac/errnotify/internal/api/grpc"
	"github.com/m-zajac/errnotify/internal/api/http"
	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/sirupsen/logrus"
)

func main() {
	l := logrus.New()
	l.Level = logrus.InfoLevel

	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		l.Fatalf("couldn't parse config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(conf.LogLevel); err == nil {
		l.Level = lvl
	} else {
		l.Warnf("invalid log level %q, using info", conf.LogLevel)
	}

	notifierConf, err := notifier.ConfigFromEnv()
	if err != nil {
		l.Fatalf("couldn't parse notifier config: %v", err)
	}
	n, err := notifier.New(notifierConf, l.WithField("component", "notifier"))
	if err != nil {
		l.Fatalf("couldn't create notifier: %v", err)
	}
	notifier.SetGlobal(n)
	defer func() {
		if !n.Flush(conf.NotifierFlushTimeout) {
			l.Warn("notifier flush timed out")
		}
		if err := n.Close(); err != nil {
			l.Errorf("closing notifier: %v", err)
		}
	}()

	mux := http.NewMux(n, conf.HandlerTimeout, l.WithField("component", "mux"))
	server := http.NewServer(
		conf.HTTPServerAddress,
		conf.HTTPProfileServerAddress,
		mux,
		l.WithField("component", "httpServer"),
	)

	grpcServer := grpc.NewServer(
		conf.GRPCServerAddress,
		n,
		l.WithField("component", "grpcServer"),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		server.Run()
		wg.Done()
	}()
	wg.Add(1)
	go func() {
		if err := grpcServer.Run(); err != nil {
			l.Fatalf("couldn't run grpc server: %v", err)
		}
		wg.Done()
	}()
	wg.Wait()
}
