// Package grpc serves the engine over gRPC alongside the standard health
// service.
package grpc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KnotWeave/pkg/errors"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

const (
	defaultMaxRecvMsgSize  = 4 * 1024 * 1024
	defaultGracefulTimeout = 10 * time.Second
)

var defaultKeepaliveParams = keepalive.ServerParameters{
	MaxConnectionIdle:     15 * time.Minute,
	MaxConnectionAge:      30 * time.Minute,
	MaxConnectionAgeGrace: 5 * time.Second,
	Time:                  5 * time.Minute,
	Timeout:               1 * time.Second,
}

var defaultKeepalivePolicy = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second,
	PermitWithoutStream: true,
}

// Option configures the Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger          logging.Logger
	metrics         *prometheus.EngineMetrics
	maxRecvMsgSize  int
	keepaliveParams keepalive.ServerParameters
	gracefulTimeout time.Duration
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithMetrics records every call on m.
func WithMetrics(m *prometheus.EngineMetrics) Option {
	return func(o *serverOptions) { o.metrics = m }
}

// WithMaxRecvMsgSize sets the maximum receive message size in bytes.
func WithMaxRecvMsgSize(size int) Option {
	return func(o *serverOptions) {
		if size > 0 {
			o.maxRecvMsgSize = size
		}
	}
}

// WithKeepaliveParams overrides the keepalive parameters.
func WithKeepaliveParams(params keepalive.ServerParameters) Option {
	return func(o *serverOptions) { o.keepaliveParams = params }
}

// WithGracefulTimeout bounds GracefulStop before the server is stopped hard.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *serverOptions) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// Server wraps a grpc.Server with the interceptor chain, health checking
// and graceful shutdown.
type Server struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	cfg          config.GRPCConfig
	opts         *serverOptions

	mu       sync.Mutex
	listener net.Listener
	services []string
}

// NewServer assembles a Server.  Nothing is bound until Start or Serve.
func NewServer(cfg config.GRPCConfig, opts ...Option) *Server {
	sopts := &serverOptions{
		maxRecvMsgSize:  defaultMaxRecvMsgSize,
		keepaliveParams: defaultKeepaliveParams,
		gracefulTimeout: defaultGracefulTimeout,
	}
	for _, o := range opts {
		o(sopts)
	}
	if sopts.logger == nil {
		sopts.logger = logging.NewNopLogger()
	}
	logger := sopts.logger.Named("grpc")
	sopts.logger = logger

	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(sopts.maxRecvMsgSize),
		grpc.KeepaliveParams(sopts.keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(defaultKeepalivePolicy),
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(logger),
			metricsUnaryInterceptor(sopts.metrics),
			loggingUnaryInterceptor(logger),
			statusUnaryInterceptor(logger),
			validationUnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(recoveryStreamInterceptor(logger)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer:   gs,
		healthServer: hs,
		cfg:          cfg,
		opts:         sopts,
	}
}

// RegisterService registers a service implementation and marks it serving.
// Must be called before Start.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.grpcServer.RegisterService(desc, impl)
	s.healthServer.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.mu.Lock()
	s.services = append(s.services, desc.ServiceName)
	s.mu.Unlock()
	s.opts.logger.Info("grpc service registered", logging.String("service", desc.ServiceName))
}

// RegisterEngine registers the engine service backed by srv.
func (s *Server) RegisterEngine(srv EngineServer) {
	s.RegisterService(&EngineServiceDesc, srv)
}

// SetServing flips the health status of the server and every registered
// service.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.mu.Lock()
	services := append([]string{""}, s.services...)
	s.mu.Unlock()
	for _, name := range services {
		s.healthServer.SetServingStatus(name, st)
	}
}

// Start listens on the configured port and serves until stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("grpc: listen on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is stopped.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return fmt.Errorf("grpc: server already started")
	}
	s.listener = ln
	s.mu.Unlock()

	s.opts.logger.Info("grpc server starting", logging.String("address", ln.Addr().String()))
	return s.grpcServer.Serve(ln)
}

// Stop drains the server, forcing it closed once the graceful timeout or
// ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.opts.logger.Info("grpc server stopping")
	s.healthServer.Shutdown()

	gracefulCtx, cancel := context.WithTimeout(ctx, s.opts.gracefulTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.opts.logger.Info("grpc server stopped gracefully")
	case <-gracefulCtx.Done():
		s.opts.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
	return nil
}

// Addr returns the bound address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ---------------------------------------------------------------------------
// Interceptors
// ---------------------------------------------------------------------------

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Errorf(codes.Internal, "[%s] %s", errors.ErrCodeInternal, errors.DefaultMessageForCode(errors.ErrCodeInternal))
			}
		}()
		return handler(ctx, req)
	}
}

func recoveryStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc stream panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isHealthCheck(info.FullMethod) {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logging.Field{
			logging.String("method", info.FullMethod),
			logging.Duration("duration", time.Since(start)),
			logging.String("code", status.Code(err).String()),
		}
		switch status.Code(err) {
		case codes.OK:
			logger.Info("grpc request completed", fields...)
		case codes.Internal, codes.Unavailable, codes.DeadlineExceeded, codes.Unknown:
			logger.Error("grpc request failed", append(fields, logging.String("error", status.Convert(err).Message()))...)
		default:
			logger.Warn("grpc request rejected", append(fields, logging.String("error", status.Convert(err).Message()))...)
		}
		return resp, err
	}
}

func metricsUnaryInterceptor(m *prometheus.EngineMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if m == nil {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		service, method := splitMethodName(info.FullMethod)
		m.RecordGRPCRequest(service, method, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// statusUnaryInterceptor converts engine errors into gRPC statuses.  The
// status message keeps the engine error code so clients can branch on it.
func statusUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		st := toStatus(err)
		if st.Code() == codes.Internal && errors.GetCode(err) == errors.CodeUnknown {
			logger.Error("unclassified grpc error",
				logging.String("method", info.FullMethod),
				logging.Err(err))
		}
		return nil, st.Err()
	}
}

// validationUnaryInterceptor runs struct validation on engine requests.
func validationUnaryInterceptor() grpc.UnaryServerInterceptor {
	prefix := "/" + EngineServiceName + "/"
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, prefix) {
			if err := dto.Validate(req); err != nil {
				return nil, err
			}
		}
		return handler(ctx, req)
	}
}

func toStatus(err error) *status.Status {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return status.Newf(codes.DeadlineExceeded, "[%s] %s", errors.ErrCodeTimeout, errors.DefaultMessageForCode(errors.ErrCodeTimeout))
	case stderrors.Is(err, context.Canceled):
		return status.Newf(codes.Canceled, "[%s] request cancelled", errors.ErrCodeServiceUnavailable)
	}

	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		return status.Newf(codes.Internal, "[%s] %s", errors.ErrCodeInternal, errors.DefaultMessageForCode(errors.ErrCodeInternal))
	}
	msg := err.Error()
	if inner := innermost(err); inner != nil && inner.Error() != msg {
		msg += ": " + inner.Error()
	}
	return status.New(grpcCode(errors.HTTPStatusForCode(code)), msg)
}

// innermost returns the deepest AppError in err's chain.
func innermost(err error) *errors.AppError {
	var last *errors.AppError
	for err != nil {
		var ae *errors.AppError
		if !stderrors.As(err, &ae) {
			break
		}
		last = ae
		err = ae.Cause
	}
	return last
}

func grpcCode(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// splitMethodName splits "/package.Service/Method" into its two parts.
func splitMethodName(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	idx := strings.LastIndex(fullMethod, "/")
	if idx < 0 {
		return "unknown", fullMethod
	}
	return fullMethod[:idx], fullMethod[idx+1:]
}
