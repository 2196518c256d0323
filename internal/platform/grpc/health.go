// Package grpc holds client helpers for the tracker's gRPC health endpoint.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	initialPollInterval = 50 * time.Millisecond
	maxPollInterval     = time.Second
	checkTimeout        = time.Second
)

// ErrNotServing is returned by Probe when the service answers with any
// status other than SERVING.
var ErrNotServing = errors.New("service is not serving")

// ClientDialOptions returns dial options for local health clients.
func ClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Check asks addr once for the status of service.
func Check(ctx context.Context, addr, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := gogrpc.NewClient(addr, ClientDialOptions()...)
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %s: %w", addr, err)
	}
	return resp.GetStatus(), nil
}

// Probe performs one health check and fails unless service is SERVING.
func Probe(ctx context.Context, addr, service string) error {
	status, err := Check(ctx, addr, service)
	if err != nil {
		return err
	}
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s reports %s", ErrNotServing, serviceName(service), status)
	}
	return nil
}

// WaitForHealth blocks until service reports SERVING on conn or ctx ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	interval := initialPollInterval
	for {
		callCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for %s: %v", serviceName(service), err)
			} else {
				logf("waiting for %s: status %s", serviceName(service), response.GetStatus())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", serviceName(service), ctx.Err())
		case <-time.After(interval):
		}

		if interval < maxPollInterval {
			interval = min(interval*2, maxPollInterval)
		}
	}
}

func serviceName(service string) string {
	if service == "" {
		return "server health"
	}
	return service
}
