package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcenv/internal/containerizer"
)

type recordingPuller struct {
	mu     sync.Mutex
	pulled []string
	fail   map[string]error
}

func (p *recordingPuller) PullImage(ctx context.Context, ref containerizer.ImageRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pulled = append(p.pulled, ref.String())
	return p.fail[ref.String()]
}

func TestRegistry_UniqueNames(t *testing.T) {
	r := NewRegistry(context.Background(), nil)

	requests := []struct {
		service string
		name    string
		want    string
	}{
		{"postgres", "", "postgres"},
		{"postgres", "", "postgres-2"},
		{"redis", "cache", "cache"},
		{"redis", "cache", "cache-2"},
		{"postgres", "postgres", "postgres-3"},
		{"redis", "cache-2", "cache-2-2"},
		{"redis", "cache", "cache-3"},
	}

	for _, req := range requests {
		inst, err := r.Register(req.service, nil, nil, "", req.name)
		require.NoError(t, err)
		assert.Equal(t, req.want, inst.Name)
	}

	assert.Equal(t, []string{"postgres", "postgres-2", "cache", "cache-2", "postgres-3", "cache-2-2", "cache-3"}, r.Names())
	for i, inst := range r.Instances() {
		assert.Equal(t, i, inst.Index)
	}
}

func TestRegistry_UnknownService(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	_, err := r.Register("oracle", nil, nil, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownService))
	assert.Empty(t, r.Instances())
}

func TestRegistry_TagOverridesDefault(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	inst, err := r.Register("postgres", nil, nil, "15", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres:15", inst.Image.String())

	inst, err = r.Register("redis", nil, nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "redis:7", inst.Image.String())
}

func TestRegistry_PullsStartAtRegistration(t *testing.T) {
	puller := &recordingPuller{fail: map[string]error{"redis:7": errors.New("no such image")}}
	r := NewRegistry(context.Background(), puller)

	pg, err := r.Register("postgres", nil, nil, "", "")
	require.NoError(t, err)
	redis, err := r.Register("redis", nil, nil, "", "")
	require.NoError(t, err)

	assert.NoError(t, pg.Pull().Wait(context.Background()))
	assert.EqualError(t, redis.Pull().Wait(context.Background()), "no such image")
	assert.ElementsMatch(t, []string{"postgres:16", "redis:7"}, puller.pulled)
}

func TestRegistry_Freeze(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	_, err := r.Register("redis", nil, nil, "", "")
	require.NoError(t, err)

	r.Freeze()
	_, err = r.Register("redis", nil, nil, "", "")
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	assert.Len(t, r.Instances(), 1)
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	_, err := r.Register("redis", nil, nil, "", "cache")
	require.NoError(t, err)

	inst, ok := r.Get("cache")
	require.True(t, ok)
	assert.Equal(t, "redis", inst.ServiceID)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestPullTask_WaitHonoursContext(t *testing.T) {
	task := &PullTask{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, task.Wait(ctx), context.Canceled)
}

func TestInstance_RunSetup(t *testing.T) {
	r := NewRegistry(context.Background(), nil)

	var leaked *Handle
	inst, err := r.Register("redis", func(ctx context.Context, h *Handle) error {
		leaked = h
		assert.Equal(t, "cache", h.Name())
		assert.NotEmpty(t, h.ServiceData()["url"])
		if err := h.SetEnv("REDIS_URL", h.ServiceData()["url"]); err != nil {
			return err
		}
		return h.SetEnv("B", "2")
	}, nil, "", "cache")
	require.NoError(t, err)

	require.NoError(t, inst.RunSetup(context.Background()))

	env := inst.Env()
	require.Len(t, env, 2)
	assert.Equal(t, "REDIS_URL", env[0].Name)
	assert.Equal(t, EnvVar{Name: "B", Value: "2"}, env[1])

	// The handle is dead once the callback returned.
	err = leaked.SetEnv("LATE", "1")
	assert.ErrorIs(t, err, ErrNoActiveServiceContext)
	assert.Len(t, inst.Env(), 2)
}

func TestInstance_RunSetupErrors(t *testing.T) {
	r := NewRegistry(context.Background(), nil)

	failing, err := r.Register("redis", func(ctx context.Context, h *Handle) error {
		return errors.New("seed failed")
	}, nil, "", "")
	require.NoError(t, err)
	assert.EqualError(t, failing.RunSetup(context.Background()), "seed failed")

	panicking, err := r.Register("redis", func(ctx context.Context, h *Handle) error {
		panic("boom")
	}, nil, "", "")
	require.NoError(t, err)
	err = panicking.RunSetup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: boom")

	noop, err := r.Register("redis", nil, nil, "", "")
	require.NoError(t, err)
	assert.NoError(t, noop.RunSetup(context.Background()))
}

func TestOrderedEnv(t *testing.T) {
	e := NewOrderedEnv()
	e.Set("A", "1")
	e.Set("B", "2")
	e.Set("A", "3")

	assert.Equal(t, 2, e.Len())
	assert.Equal(t, []EnvVar{{"A", "3"}, {"B", "2"}}, e.Pairs())
	v, ok := e.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestOptions(t *testing.T) {
	opts := Options{"port": "5433", "bad": "x", "timeout": "5s", "empty": ""}

	assert.Equal(t, "def", opts.Get("empty", "def"))
	n, err := opts.Int("port", 0)
	require.NoError(t, err)
	assert.Equal(t, 5433, n)

	_, err = opts.Int("bad", 0)
	assert.Error(t, err)

	d, err := opts.Duration("timeout", 0)
	require.NoError(t, err)
	assert.Equal(t, "5s", d.String())
}

func TestFindTool(t *testing.T) {
	spec, err := newPostgres(Options{"port": "5555"}, containerizer.ImageRef{Repository: "postgres", Tag: "16"})
	require.NoError(t, err)

	tool, err := FindTool("db", spec, "psql")
	require.NoError(t, err)
	assert.Equal(t, "psql", tool.Name)

	_, err = FindTool("db", spec, "mongo")
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"psql", "pg_dump"}, unknown.Available)
	assert.Contains(t, err.Error(), "available: psql, pg_dump")
}

func TestVariants(t *testing.T) {
	var ids []string
	for _, v := range Variants() {
		ids = append(ids, v.ID)
	}
	assert.Subset(t, ids, []string{"mysql", "postgres", "redis"})
	assert.IsIncreasing(t, ids)
}
