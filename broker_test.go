package servhub

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T, opts ...Option) *Broker {
	t.Helper()
	b, err := Create(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Shutdown() })
	return b
}

type calculator struct {
	version string
	closed  bool
}

func (c *calculator) Add(a, b int) int { return a + b }
func (c *calculator) Close() error {
	c.closed = true
	return nil
}

func TestBroker_InProcessRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	v10 := NewVersion(1, 0)
	v11 := NewVersion(1, 1)

	require.NoError(t, b.Register("Calc", ServiceRegistration{Audience: AudienceLocal}))
	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewVersionedMoniker("Calc", v10)),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			return &calculator{version: "1.0"}, nil
		}))
	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewVersionedMoniker("Calc", v11)),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			return &calculator{version: "1.1"}, nil
		}))

	versions := b.ListVersions("Calc")
	require.Len(t, versions, 2)
	require.Equal(t, "1.0", versions[0].String())
	require.Equal(t, "1.1", versions[1].String())

	p, err := b.RequestProxy(context.Background(), NewVersionedMoniker("Calc", v10),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)
	calc := p.Instance().(*calculator)
	require.Equal(t, "1.0", calc.version)
	require.Equal(t, 5, calc.Add(2, 3))

	require.NoError(t, p.Close())
	require.True(t, calc.closed, "closing the proxy closes an io.Closer instance")
	require.NoError(t, p.Close(), "double close is a no-op")

	_, err = b.RequestProxy(context.Background(), NewVersionedMoniker("Calc", NewVersion(2, 0)),
		LocalCaller, ActivationOptions{})
	require.ErrorIs(t, err, ErrServiceNotFound)
}

func TestBroker_RequestedVersionEcho(t *testing.T) {
	b := newTestBroker(t)
	var seen ActivationOptions

	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("Calc")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			seen = opts
			return &calculator{}, nil
		}))

	p, err := b.RequestProxy(context.Background(), NewVersionedMoniker("Calc", NewVersion(1, 2)),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)
	defer p.Close()

	v, ok := seen.Argument(ArgRequestedVersion)
	require.True(t, ok, "a catch-all provider learns which version was asked for")
	require.Equal(t, "1.2", v)
	require.Equal(t, seen, p.ActivationOptions())
}

func TestBroker_RecursiveResolution(t *testing.T) {
	b := newTestBroker(t)

	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("clock")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			return "tick", nil
		}))
	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("stamper")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			// A service is itself a caller; resolution rules apply to it
			// exactly as to anyone else.
			dep, err := broker.RequestProxy(ctx, NewMoniker("clock"), LocalCaller, opts)
			if err != nil {
				return nil, err
			}
			defer dep.Close()
			return "stamp-" + dep.Instance().(string), nil
		}))

	p, err := b.RequestProxy(context.Background(), NewMoniker("stamper"),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, "stamp-tick", p.Instance())
}

func TestBroker_FactoryErrorWrapsStep(t *testing.T) {
	b := newTestBroker(t)
	boom := errors.New("no database")

	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("Calc")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			return nil, boom
		}))

	_, err := b.RequestProxy(context.Background(), NewMoniker("Calc"),
		LocalCaller, ActivationOptions{})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "activate")
	require.ErrorContains(t, err, "Calc")
}

func TestBroker_CancellationBeatsFactoryError(t *testing.T) {
	b := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("Calc")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			cancel()
			return nil, errors.New("half-built")
		}))

	_, err := b.RequestProxy(ctx, NewMoniker("Calc"), LocalCaller, ActivationOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBroker_AudienceGate(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.Register("internal", ServiceRegistration{Audience: AudienceLocal}))
	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("internal")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			return &calculator{}, nil
		}))

	_, err := b.RequestProxy(context.Background(), NewMoniker("internal"),
		Caller{Audience: AudienceRemoteExclusiveClient}, ActivationOptions{})
	require.ErrorIs(t, err, ErrAccessDenied)

	p, err := b.RequestProxy(context.Background(), NewMoniker("internal"),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)
	p.Close()
}

func TestBroker_CredentialsFromAuthorization(t *testing.T) {
	auth := NewAuthorizationState(map[string]string{"token": "abc"})
	b := newTestBroker(t, WithAuthorization(auth))

	var seen ActivationOptions
	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("Calc")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			seen = opts
			return &calculator{}, nil
		}))

	p, err := b.RequestProxy(context.Background(), NewMoniker("Calc"),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)
	p.Close()
	require.Equal(t, "abc", seen.ClientCredentials["token"])

	own := ActivationOptions{ClientCredentials: map[string]string{"token": "mine"}}
	p, err = b.RequestProxy(context.Background(), NewMoniker("Calc"), LocalCaller, own)
	require.NoError(t, err)
	p.Close()
	require.Equal(t, "mine", seen.ClientCredentials["token"],
		"explicit credentials are never replaced by the shared state")
}

func TestBroker_RemoteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	desc := NewDescriptor(NewMoniker("echo")).WithFraming(FramingLengthPrefixed)

	host, err := NewServiceHost(desc, func(ctx context.Context, conn *Connection) {
		defer conn.Close()
		var msg map[string]string
		for {
			if err := conn.Recv(&msg); err != nil {
				return
			}
			if err := conn.Send(msg); err != nil {
				return
			}
		}
	}, &HostConfig{Listener: &PipeListener{Dir: dir}})
	require.NoError(t, err)
	defer host.Close()

	name, err := host.Listen("")
	require.NoError(t, err)

	b := newTestBroker(t, WithChannelDir(dir))
	require.NoError(t, b.ProfferChannel(desc, name))

	p, err := b.RequestProxy(context.Background(), NewMoniker("echo"),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)
	require.Nil(t, p.Instance())
	require.NotNil(t, p.Connection())

	ch, ok := p.ActivationOptions().Argument(ArgChannelName)
	require.True(t, ok)
	require.Equal(t, name, ch)

	require.NoError(t, p.Connection().Send(map[string]string{"op": "sum"}))
	var reply map[string]string
	require.NoError(t, p.Connection().Recv(&reply))
	require.Equal(t, "sum", reply["op"])

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestBroker_ProfferChannelValidatesDescriptor(t *testing.T) {
	b := newTestBroker(t)
	bad := NewDescriptor(NewMoniker("Calc")).WithFormatter(FormatterCBOR)
	require.ErrorIs(t, b.ProfferChannel(bad, "somewhere"), ErrUnsupportedCombination)
}

func TestBroker_ProfferFactoryRequiresFactory(t *testing.T) {
	b := newTestBroker(t)
	require.Error(t, b.ProfferFactory(NewDescriptor(NewMoniker("Calc")), nil))
}

func TestBroker_ScanServices(t *testing.T) {
	b := newTestBroker(t)
	factory := func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
		return &calculator{}, nil
	}
	require.NoError(t, b.ProfferFactory(NewDescriptor(NewMoniker("calc.add")), factory))
	require.NoError(t, b.ProfferFactory(NewDescriptor(NewMoniker("calc.sub")), factory))
	require.NoError(t, b.ProfferFactory(NewDescriptor(NewMoniker("time")), factory))

	require.Equal(t, []string{"calc.add", "calc.sub"}, b.ScanServices("calc."))

	require.True(t, b.Unproffer(NewMoniker("calc.sub")))
	require.Equal(t, []string{"calc.add"}, b.ScanServices("calc."))
}

func TestBroker_ShutdownClosesProxies(t *testing.T) {
	b, err := Create()
	require.NoError(t, err)

	calc := &calculator{}
	require.NoError(t, b.ProfferFactory(
		NewDescriptor(NewMoniker("Calc")),
		func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error) {
			return calc, nil
		}))

	p, err := b.RequestProxy(context.Background(), NewMoniker("Calc"),
		LocalCaller, ActivationOptions{})
	require.NoError(t, err)

	require.NoError(t, b.Shutdown())
	require.True(t, calc.closed, "shutdown closes proxies the owner abandoned")

	_, err = b.RequestProxy(context.Background(), NewMoniker("Calc"),
		LocalCaller, ActivationOptions{})
	require.ErrorIs(t, err, ErrBrokerClosed)

	require.NoError(t, b.Shutdown(), "shutdown is idempotent")
	require.NoError(t, p.Close(), "closing an already-shut proxy stays a no-op")
}

func TestBroker_RemoteBindFailureReleasesChannel(t *testing.T) {
	closed := make(chan struct{})
	d := &MockDialer{}
	d.m.On("DialChannel", "calc-chan").Return(closeSignaler{closed: closed}, nil).Once()

	b := newTestBroker(t, WithDialer(d))

	// Slip an invalid descriptor past ProfferChannel's early check to prove
	// the late one cannot leak the dialed channel.
	m := NewMoniker("Calc")
	require.NoError(t, b.reg.proffer(&offer{
		descriptor: NewDescriptor(m).WithFormatter(FormatterCBOR),
		channel:    "calc-chan",
	}))

	_, err := b.RequestProxy(context.Background(), m, LocalCaller, ActivationOptions{})
	require.ErrorIs(t, err, ErrUnsupportedCombination)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("the dialed channel was never released")
	}
}

type closeSignaler struct {
	closed chan struct{}
}

func (c closeSignaler) Read(p []byte) (int, error)  { return 0, io.EOF }
func (c closeSignaler) Write(p []byte) (int, error) { return len(p), nil }
func (c closeSignaler) Close() error {
	close(c.closed)
	return nil
}
