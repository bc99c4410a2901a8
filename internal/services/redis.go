package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"svcenv/internal/containerizer"
)

func init() {
	RegisterVariant(Variant{
		ID:           "redis",
		Description:  "Redis key-value store",
		DefaultImage: containerizer.ImageRef{Repository: "redis", Tag: "7"},
		New:          newRedis,
	})
}

const redisContainerPort = 6379

// Redis runs the official redis image.
type Redis struct {
	image        containerizer.ImageRef
	password     string
	port         int
	readyTimeout time.Duration
	prefix       string
}

func newRedis(opts Options, image containerizer.ImageRef) (Spec, error) {
	port, err := opts.Int("port", 0)
	if err != nil {
		return nil, err
	}
	if port == 0 {
		if port, err = freePort(); err != nil {
			return nil, err
		}
	}
	timeout, err := opts.Duration("ready_timeout", defaultReadyTimeout)
	if err != nil {
		return nil, err
	}
	return &Redis{
		image:        image,
		password:     opts.Get("password", ""),
		port:         port,
		readyTimeout: timeout,
	}, nil
}

func (r *Redis) Image() containerizer.ImageRef {
	return r.image
}

func (r *Redis) Configure(base containerizer.ContainerConfig) containerizer.ContainerConfig {
	base.Ports = append(base.Ports, fmt.Sprintf("%s:%d:%d", localHost, r.port, redisContainerPort))
	base.Command = []string{"redis-server"}
	if r.password != "" {
		base.Command = append(base.Command, "--requirepass", r.password)
	}
	if r.prefix != "" {
		base.Volumes = append(base.Volumes, r.volume()+":/data")
		base.Command = append(base.Command, "--appendonly", "yes")
	}
	return base
}

func (r *Redis) WaitReady(ctx context.Context, rt ReadinessRuntime) error {
	args := []string{"redis-cli"}
	if r.password != "" {
		args = append(args, "-a", r.password, "--no-auth-warning")
	}
	args = append(args, "ping")
	return waitUntil(ctx, rt, r.readyTimeout, execProbe(rt, "PONG", args...))
}

func (r *Redis) ServiceData() map[string]string {
	u := url.URL{
		Scheme: "redis",
		Host:   fmt.Sprintf("%s:%d", localHost, r.port),
		Path:   "/0",
	}
	if r.password != "" {
		u.User = url.UserPassword("", r.password)
	}
	data := map[string]string{
		"host": localHost,
		"port": strconv.Itoa(r.port),
		"url":  u.String(),
	}
	if r.password != "" {
		data["password"] = r.password
	}
	return data
}

func (r *Redis) Save() Record {
	rec := Record{
		"port":    strconv.Itoa(r.port),
		"version": r.image.Tag,
	}
	if r.password != "" {
		rec["password"] = r.password
	}
	return rec
}

func (r *Redis) Load(rec Record) error {
	if v := rec["port"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("stored port %q: %w", v, err)
		}
		r.port = port
	}
	if v, ok := rec["password"]; ok {
		r.password = v
	}
	return nil
}

func (r *Redis) SetStorePrefix(prefix string) {
	r.prefix = prefix
}

func (r *Redis) volume() string {
	return r.prefix + "-data"
}

func (r *Redis) Tools() []Tool {
	return []Tool{{
		Name:        "redis-cli",
		Description: "interactive Redis client",
		Command: func(data map[string]string, extraArgs []string) (ToolCommand, error) {
			cmd := ToolCommand{
				Argv: append([]string{"redis-cli", "-h", data["host"], "-p", data["port"]}, extraArgs...),
			}
			if pw := data["password"]; pw != "" {
				cmd.Env = map[string]string{"REDISCLI_AUTH": pw}
			}
			return cmd, nil
		},
	}}
}

func (r *Redis) Cleanup(ctx context.Context, c Cleaner) error {
	if r.prefix == "" {
		return nil
	}
	return c.RemoveVolume(ctx, r.volume())
}
