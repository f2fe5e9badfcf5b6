package servhub

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const channelNamePrefix = "sh-"

// maxChannelName keeps derived socket paths well under the Unix socket path
// limit (typically 104-108 bytes including the directory).
const maxChannelName = 64

// ChannelName derives the deterministic channel name for a moniker plus a
// disambiguator. A connector racing a freshly-spawned host computes the
// same name the host will bind, so retrying against a name that does not
// exist yet is meaningful. Over-long names collapse to a stable hash, which
// keeps determinism intact.
func ChannelName(m Moniker, disambiguator string) string {
	base := m.Name
	if m.Version != nil {
		base += "-" + m.Version.String()
	}
	if disambiguator != "" {
		base += "-" + disambiguator
	}
	if len(base) > maxChannelName {
		sum := fnv.New64a()
		sum.Write([]byte(base))
		base = fmt.Sprintf("%s-%x", base[:maxChannelName-17], sum.Sum64())
	}
	return channelNamePrefix + base
}

// PipeDialer binds named channels as Unix domain sockets under a directory.
type PipeDialer struct {
	// Dir holds the channel sockets; empty means os.TempDir().
	Dir string

	// Timeout bounds a single attempt; a deadline hit surfaces as the
	// transient ErrConnectTimeout so the connector can retry it.
	Timeout time.Duration
}

var _ ChannelDialer = (*PipeDialer)(nil)

func (d *PipeDialer) ChannelPath(name string) string {
	dir := d.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name+".sock")
}

func (d *PipeDialer) DialChannel(ctx context.Context, name string) (io.ReadWriteCloser, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "unix", d.ChannelPath(name))
	if err == nil {
		return conn, nil
	}

	// A missing socket file and a refused connection both mean "nobody is
	// accepting here yet": the file appears when the host binds, and a
	// stale file of a dead host refuses.
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, name)
	}
	return nil, err
}

// PipeListener is the hosting side: it binds the named channel socket.
type PipeListener struct {
	// Dir holds the channel sockets; empty means os.TempDir().
	Dir string
}

func (l *PipeListener) ChannelPath(name string) string {
	d := PipeDialer{Dir: l.Dir}
	return d.ChannelPath(name)
}

// ListenChannel binds the socket. A stale socket file left by a crashed
// host is detected by probing it: if nobody answers, the file is removed
// and the bind retried once. A live listener is never displaced.
func (l *PipeListener) ListenChannel(name string) (net.Listener, error) {
	path := l.ChannelPath(name)

	ln, err := net.Listen("unix", path)
	if err == nil {
		return ln, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, err
	}

	probe, perr := net.DialTimeout("unix", path, 250*time.Millisecond)
	if perr == nil {
		probe.Close()
		return nil, err
	}
	if rmErr := os.Remove(path); rmErr != nil {
		return nil, err
	}
	return net.Listen("unix", path)
}
