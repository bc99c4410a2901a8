package containerizer

import (
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	outputBufferSize = 16 * 1024
	killGracePeriod  = 10 * time.Second
)

// Process is the handle of a foreground `run` invocation.
type Process struct {
	cmd  *exec.Cmd
	out  *outputBuffer
	done chan struct{}
	err  error

	killOnce sync.Once
	killErr  error
}

func newProcess(cmd *exec.Cmd) *Process {
	out := &outputBuffer{limit: outputBufferSize}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return &Process{cmd: cmd, out: out, done: make(chan struct{})}
}

func (p *Process) start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}
	go func() {
		p.err = p.cmd.Wait()
		close(p.done)
	}()
	return nil
}

// PID returns the OS pid of the engine client process.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error. Only meaningful after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Output returns the tail of the combined stdout/stderr of the process.
func (p *Process) Output() string {
	return p.out.String()
}

// Kill terminates the process group: SIGTERM first, SIGKILL after a grace period.
func (p *Process) Kill() error {
	p.killOnce.Do(func() {
		p.killErr = p.kill(killGracePeriod)
	})
	return p.killErr
}

func (p *Process) kill(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	pid := p.PID()
	if pid == 0 {
		return nil
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return err
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return err
	}
	<-p.done
	return nil
}

// outputBuffer keeps the last limit bytes written to it.
type outputBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
