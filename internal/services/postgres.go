package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"

	"svcenv/internal/containerizer"
)

func init() {
	RegisterVariant(Variant{
		ID:           "postgres",
		Description:  "PostgreSQL database",
		DefaultImage: containerizer.ImageRef{Repository: "postgres", Tag: "16"},
		New:          newPostgres,
	})
}

const postgresContainerPort = 5432

// Postgres runs the official postgres image.
type Postgres struct {
	image        containerizer.ImageRef
	user         string
	password     string
	database     string
	port         int
	readyTimeout time.Duration
	prefix       string
}

func newPostgres(opts Options, image containerizer.ImageRef) (Spec, error) {
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
	return &Postgres{
		image:        image,
		user:         opts.Get("user", "postgres"),
		password:     opts.Get("password", generatePassword()),
		database:     opts.Get("database", "postgres"),
		port:         port,
		readyTimeout: timeout,
	}, nil
}

func (p *Postgres) Image() containerizer.ImageRef {
	return p.image
}

func (p *Postgres) Configure(base containerizer.ContainerConfig) containerizer.ContainerConfig {
	base.Ports = append(base.Ports, fmt.Sprintf("%s:%d:%d", localHost, p.port, postgresContainerPort))
	if base.Env == nil {
		base.Env = make(map[string]string)
	}
	base.Env["POSTGRES_USER"] = p.user
	base.Env["POSTGRES_PASSWORD"] = p.password
	base.Env["POSTGRES_DB"] = p.database
	if p.prefix != "" {
		base.Volumes = append(base.Volumes, p.volume()+":/var/lib/postgresql/data")
	}
	return base
}

// WaitReady probes over TCP inside the container: the image's init phase
// runs a temporary server on the unix socket only.
func (p *Postgres) WaitReady(ctx context.Context, rt ReadinessRuntime) error {
	return waitUntil(ctx, rt, p.readyTimeout,
		execProbe(rt, "", "pg_isready", "-h", localHost, "-U", p.user, "-d", p.database))
}

func (p *Postgres) ServiceData() map[string]string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.user, p.password),
		Host:     fmt.Sprintf("%s:%d", localHost, p.port),
		Path:     "/" + p.database,
		RawQuery: "sslmode=disable",
	}
	return map[string]string{
		"host":     localHost,
		"port":     strconv.Itoa(p.port),
		"user":     p.user,
		"password": p.password,
		"database": p.database,
		"url":      u.String(),
	}
}

func (p *Postgres) Save() Record {
	return Record{
		"user":     p.user,
		"password": p.password,
		"database": p.database,
		"port":     strconv.Itoa(p.port),
		"version":  p.image.Tag,
	}
}

func (p *Postgres) Load(rec Record) error {
	if err := checkMajorVersion("postgres", rec["version"], p.image.Tag); err != nil {
		return err
	}
	if v := rec["port"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("stored port %q: %w", v, err)
		}
		p.port = port
	}
	if v := rec["user"]; v != "" {
		p.user = v
	}
	if v := rec["password"]; v != "" {
		p.password = v
	}
	if v := rec["database"]; v != "" {
		p.database = v
	}
	return nil
}

func (p *Postgres) SetStorePrefix(prefix string) {
	p.prefix = prefix
}

func (p *Postgres) volume() string {
	return p.prefix + "-data"
}

func (p *Postgres) Tools() []Tool {
	return []Tool{
		{
			Name:        "psql",
			Description: "interactive PostgreSQL shell",
			Command:     postgresClient("psql"),
		},
		{
			Name:        "pg_dump",
			Description: "dump the database as SQL",
			Command:     postgresClient("pg_dump"),
		},
	}
}

func postgresClient(binary string) func(data map[string]string, extraArgs []string) (ToolCommand, error) {
	return func(data map[string]string, extraArgs []string) (ToolCommand, error) {
		argv := []string{binary,
			"-h", data["host"],
			"-p", data["port"],
			"-U", data["user"],
			"-d", data["database"],
		}
		return ToolCommand{
			Argv: append(argv, extraArgs...),
			Env:  map[string]string{"PGPASSWORD": data["password"]},
		}, nil
	}
}

func (p *Postgres) Cleanup(ctx context.Context, c Cleaner) error {
	if p.prefix == "" {
		return nil
	}
	return c.RemoveVolume(ctx, p.volume())
}

// checkMajorVersion refuses to reuse persisted data across major versions.
// Tags that are not versions (latest, alpine, ...) are not checked.
func checkMajorVersion(service, stored, current string) error {
	if stored == "" || current == "" || stored == current {
		return nil
	}
	sv, err := semver.NewVersion(stored)
	if err != nil {
		return nil
	}
	cv, err := semver.NewVersion(current)
	if err != nil {
		return nil
	}
	if sv.Major() != cv.Major() {
		return fmt.Errorf("stored %s data was created with version %s and cannot be used with %s; delete the store or pin the tag", service, stored, current)
	}
	return nil
}
