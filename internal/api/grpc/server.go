package grpc

import (
	"net"
	"os"
	"os/signal"

	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server can start grpc server with health service, reporting errors to the notifier.
type Server struct {
	address string
	n       *notifier.Notifier
	health  *health.Server
	l       logrus.FieldLogger
}

// NewServer creates new Server instance.
func NewServer(address string, n *notifier.Notifier, l logrus.FieldLogger) *Server {
	return &Server{
		address: address,
		n:       n,
		health:  health.NewServer(),
		l:       l,
	}
}

// Health returns health service, so its serving status can be changed.
func (s *Server) Health() *health.Server {
	return s.health
}

// NewGRPCServer creates grpc server with registered services and notifier interceptor.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryServerInterceptor(s.n, s.l)))
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, s.health)

	return srv
}

// Run runs the grpc server. Waits SIGINT is received, then gracefully shutdowns.
// Returns error when failing to open tcp connection.
func (s *Server) Run() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.Wrap(err, "starting tcp listener")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	srv := s.NewGRPCServer()

	go func() {
		s.l.Infof("starting grpc server, listening on %s", s.address)
		if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			s.l.Errorf("grpc server returned error: %v", err)
		}
	}()

	<-stop
	s.health.Shutdown()
	srv.GracefulStop()
	s.l.Info("grpc server shut down")

	return nil
}
