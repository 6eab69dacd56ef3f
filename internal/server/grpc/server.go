package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/bloom/internal/config"
	orderservice "github.com/Additional-Code/bloom/internal/service/order"
	"github.com/Additional-Code/bloom/pkg/errorbank"
)

// OrdersService is the health service name reported for the order store.
const OrdersService = "bloom.orders"

const healthInterval = 10 * time.Second

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer, health.NewServer),
	fx.Invoke(Register, Run),
)

// NewServer builds a gRPC server with logging and error mapping interceptors.
func NewServer(logger *zap.Logger) *grpc.Server {
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryLogger(logger), UnaryErrors()),
		grpc.ChainStreamInterceptor(StreamLogger(logger)),
	)
}

// UnaryLogger logs every unary call with its duration.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)
		if err != nil {
			logger.Warn("grpc unary call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration), zap.Error(err))
		} else {
			logger.Debug("grpc unary call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration))
		}
		return resp, err
	}
}

// StreamLogger logs every stream (health watchers included) when it ends.
func StreamLogger(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		duration := time.Since(start)
		if err != nil {
			logger.Warn("grpc stream call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration), zap.Error(err))
		} else {
			logger.Debug("grpc stream call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration))
		}
		return err
	}
}

// UnaryErrors converts errorbank errors into gRPC statuses.
func UnaryErrors() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		return resp, ToStatus(err)
	}
}

// ToStatus maps err onto a gRPC status error. Errors that already carry a
// status pass through unchanged.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	appErr := errorbank.From(err)
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

// Register attaches the health service and keeps the order store's serving
// state current while the server runs.
func Register(lc fx.Lifecycle, server *grpc.Server, hs *health.Server, orders *orderservice.Service, logger *zap.Logger) {
	healthpb.RegisterHealthServer(server, hs)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go watchHealth(ctx, hs, orders, logger)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			hs.Shutdown()
			return nil
		},
	})
}

func watchHealth(ctx context.Context, hs *health.Server, orders *orderservice.Service, logger *zap.Logger) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		UpdateHealth(ctx, hs, orders, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// UpdateHealth probes the order store once and publishes the result.
func UpdateHealth(ctx context.Context, hs *health.Server, orders *orderservice.Service, logger *zap.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	state := healthpb.HealthCheckResponse_SERVING
	if err := orders.Ready(probeCtx); err != nil {
		logger.Warn("order store not ready", zap.Error(err))
		state = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", state)
	hs.SetServingStatus(OrdersService, state)
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	var listener net.Listener

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			listener = ln
			logger.Info("starting gRPC server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(listener); err != nil {
					logger.Fatal("grpc server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				if listener != nil {
					_ = listener.Close()
				}
				return nil
			}
		},
	})
}
