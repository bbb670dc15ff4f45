package grpc

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// routeMethod is reported as the method of grpc route metrics.
const routeMethod = "RPC"

// UnaryServerInterceptor reports panics and server errors of unary calls to the notifier.
// Panics are answered with codes.Internal. When performance stats are enabled, calls are measured as route metrics.
func UnaryServerInterceptor(n *notifier.Notifier, l logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			notify(n, l, notifier.NewPanicError(v), req, info)
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}()

		if !n.Config().PerformanceStats {
			resp, err = handler(ctx, req)
		} else {
			metric := notifier.NewRouteMetric(routeMethod, info.FullMethod)
			metric.ContentType = "application/grpc"
			n.Routes().Track(ctx, metric, func() {
				resp, err = handler(ctx, req)
				metric.StatusCode = httpStatus(status.Code(err))
			})
		}

		if isServerError(err) {
			notify(n, l, err, req, info)
		}

		return resp, err
	}
}

func notify(n *notifier.Notifier, l logrus.FieldLogger, err error, req interface{}, info *grpc.UnaryServerInfo) {
	notice := n.BuildNotice(err)
	notice.SetRoute(info.FullMethod)
	notice.SetComponent("grpc")
	for k, v := range requestParams(req) {
		notice.Params[k] = v
	}

	if err := n.SendNotice(context.Background(), notice); err != nil {
		l.Errorf("couldn't queue notice for %s: %v", info.FullMethod, err)
	}
}

// requestParams renders proto request as a map of its json fields.
func requestParams(req interface{}) map[string]interface{} {
	msg, ok := req.(proto.Message)
	if !ok {
		return nil
	}

	b, err := protojson.Marshal(msg)
	if err != nil {
		return nil
	}
	var params map[string]interface{}
	if err := jsoniter.ConfigFastest.Unmarshal(b, &params); err != nil {
		return nil
	}

	return params
}

func isServerError(err error) bool {
	switch status.Code(err) {
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return true
	}
	return false
}

// httpStatus maps grpc code to http status, following grpc-gateway conventions.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
