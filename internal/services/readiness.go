package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"svcenv/pkg/logging"
)

const (
	localHost = "127.0.0.1"

	defaultReadyTimeout = 2 * time.Minute
)

// errContainerExited is reported when the container process disappears
// while its readiness is still being probed.
var errContainerExited = errors.New("container exited before becoming ready")

// newReadinessBackOff paces readiness probes. A variable so tests can
// control the interval.
var newReadinessBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// waitUntil polls probe with exponential backoff until it succeeds, the
// container exits, ctx is cancelled or maxWait elapses. maxWait <= 0 means
// no limit.
func waitUntil(ctx context.Context, rt ReadinessRuntime, maxWait time.Duration, probe func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-rt.Exited():
			cancel()
		case <-ctx.Done():
		}
	}()

	opts := []backoff.RetryOption{
		backoff.WithBackOff(newReadinessBackOff()),
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.Debug("Readiness", "%s not ready yet (%v), retrying in %s", rt.ContainerName(), err, next)
		}),
	}
	if maxWait > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(maxWait))
	} else {
		// Retry applies its own 15m cap unless told otherwise.
		opts = append(opts, backoff.WithMaxElapsedTime(0))
	}

	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := probe(ctx); err != nil {
			lastErr = err
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, opts...)

	if err == nil {
		return nil
	}
	select {
	case <-rt.Exited():
		return errContainerExited
	default:
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || lastErr == nil {
		return err
	}
	return fmt.Errorf("%s not ready after %s: %w", rt.ContainerName(), maxWait, lastErr)
}

// execProbe builds a probe that runs args inside the container and, when
// want is non-empty, requires the trimmed output to equal it.
func execProbe(rt ReadinessRuntime, want string, args ...string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		out, err := rt.Exec(ctx, args...)
		if err != nil {
			return err
		}
		if want != "" && strings.TrimSpace(string(out)) != want {
			return fmt.Errorf("unexpected probe output %q", strings.TrimSpace(string(out)))
		}
		return nil
	}
}

// freePort asks the kernel for an unused local TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", localHost+":0")
	if err != nil {
		return 0, fmt.Errorf("allocate local port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// generatePassword returns a random alphanumeric secret.
func generatePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
