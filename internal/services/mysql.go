package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"svcenv/internal/containerizer"
)

func init() {
	RegisterVariant(Variant{
		ID:           "mysql",
		Description:  "MySQL database",
		DefaultImage: containerizer.ImageRef{Repository: "mysql", Tag: "8"},
		New:          newMySQL,
	})
}

const mysqlContainerPort = 3306

// MySQL runs the official mysql image.
type MySQL struct {
	image        containerizer.ImageRef
	user         string
	password     string
	rootPassword string
	database     string
	port         int
	readyTimeout time.Duration
	prefix       string
}

func newMySQL(opts Options, image containerizer.ImageRef) (Spec, error) {
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
	return &MySQL{
		image:        image,
		user:         opts.Get("user", "svcenv"),
		password:     opts.Get("password", generatePassword()),
		rootPassword: opts.Get("root_password", generatePassword()),
		database:     opts.Get("database", "svcenv"),
		port:         port,
		readyTimeout: timeout,
	}, nil
}

func (m *MySQL) Image() containerizer.ImageRef {
	return m.image
}

func (m *MySQL) Configure(base containerizer.ContainerConfig) containerizer.ContainerConfig {
	base.Ports = append(base.Ports, fmt.Sprintf("%s:%d:%d", localHost, m.port, mysqlContainerPort))
	if base.Env == nil {
		base.Env = make(map[string]string)
	}
	base.Env["MYSQL_USER"] = m.user
	base.Env["MYSQL_PASSWORD"] = m.password
	base.Env["MYSQL_ROOT_PASSWORD"] = m.rootPassword
	base.Env["MYSQL_DATABASE"] = m.database
	if m.prefix != "" {
		base.Volumes = append(base.Volumes, m.volume()+":/var/lib/mysql")
	}
	return base
}

// WaitReady pings over TCP; the init phase runs with networking disabled.
func (m *MySQL) WaitReady(ctx context.Context, rt ReadinessRuntime) error {
	return waitUntil(ctx, rt, m.readyTimeout,
		execProbe(rt, "", "mysqladmin", "ping", "--silent", "-h", localHost, "-u", m.user, "-p"+m.password))
}

func (m *MySQL) ServiceData() map[string]string {
	u := url.URL{
		Scheme: "mysql",
		User:   url.UserPassword(m.user, m.password),
		Host:   fmt.Sprintf("%s:%d", localHost, m.port),
		Path:   "/" + m.database,
	}
	return map[string]string{
		"host":     localHost,
		"port":     strconv.Itoa(m.port),
		"user":     m.user,
		"password": m.password,
		"database": m.database,
		"url":      u.String(),
	}
}

func (m *MySQL) Save() Record {
	return Record{
		"user":          m.user,
		"password":      m.password,
		"root_password": m.rootPassword,
		"database":      m.database,
		"port":          strconv.Itoa(m.port),
		"version":       m.image.Tag,
	}
}

func (m *MySQL) Load(rec Record) error {
	if err := checkMajorVersion("mysql", rec["version"], m.image.Tag); err != nil {
		return err
	}
	if v := rec["port"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("stored port %q: %w", v, err)
		}
		m.port = port
	}
	for key, field := range map[string]*string{
		"user":          &m.user,
		"password":      &m.password,
		"root_password": &m.rootPassword,
		"database":      &m.database,
	} {
		if v := rec[key]; v != "" {
			*field = v
		}
	}
	return nil
}

func (m *MySQL) SetStorePrefix(prefix string) {
	m.prefix = prefix
}

func (m *MySQL) volume() string {
	return m.prefix + "-data"
}

func (m *MySQL) Tools() []Tool {
	return []Tool{{
		Name:        "mysql",
		Description: "interactive MySQL shell",
		Command:     mysqlClient,
	}}
}

// mysqlClient passes credentials through an option file so the password
// never shows up in the process list.
func mysqlClient(data map[string]string, extraArgs []string) (ToolCommand, error) {
	path, err := writeMySQLOptionFile(data)
	if err != nil {
		return ToolCommand{}, err
	}
	argv := []string{"mysql", "--defaults-extra-file=" + path}
	argv = append(argv, extraArgs...)
	argv = append(argv, data["database"])
	return ToolCommand{
		Argv:    argv,
		Cleanup: func() { os.Remove(path) },
	}, nil
}

func writeMySQLOptionFile(data map[string]string) (string, error) {
	cfg := ini.Empty()
	sec, err := cfg.NewSection("client")
	if err != nil {
		return "", err
	}
	for _, key := range []string{"host", "port", "user", "password"} {
		if _, err := sec.NewKey(key, data[key]); err != nil {
			return "", err
		}
	}

	f, err := os.CreateTemp("", "svcenv-mysql-*.cnf")
	if err != nil {
		return "", fmt.Errorf("create mysql option file: %w", err)
	}
	if _, err := cfg.WriteTo(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write mysql option file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (m *MySQL) Cleanup(ctx context.Context, c Cleaner) error {
	if m.prefix == "" {
		return nil
	}
	return c.RemoveVolume(ctx, m.volume())
}
