// Package health reports whether the record store answers, over HTTP for load
// balancers and over the standard gRPC health service for the ops port.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const pingTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Checker struct {
	store   Pinger
	grpc    *grpchealth.Server
	logger  logger.ZapLogger
	healthy atomic.Bool
}

func NewChecker(store Pinger, log logger.ZapLogger) *Checker {
	return &Checker{
		store:  store,
		grpc:   grpchealth.NewServer(),
		logger: log,
	}
}

func (h *Checker) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.Health)
}

func (h *Checker) Health(c *fiber.Ctx) error {
	if !h.check(c.UserContext()) {
		return c.Status(fiber.StatusServiceUnavailable).SendString("unavailable")
	}
	return c.SendString("ok")
}

// RegisterGRPC exposes grpc.health.v1 and server reflection on s.
func (h *Checker) RegisterGRPC(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.grpc)
	reflection.Register(s)
}

// Watch re-checks the store every interval until ctx ends, keeping the gRPC
// status current.
func (h *Checker) Watch(ctx context.Context, interval time.Duration) {
	h.check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.grpc.Shutdown()
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *Checker) check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := h.store.Ping(ctx)
	healthy := err == nil
	if was := h.healthy.Swap(healthy); was != healthy || !healthy {
		if healthy {
			h.logger.Info("store reachable")
		} else {
			h.logger.Warn("store unreachable", zap.Error(err))
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.grpc.SetServingStatus("", status)
	return healthy
}
