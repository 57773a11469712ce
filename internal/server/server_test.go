package server

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ASHISH26940/sharedvars/internal/client"
	"github.com/ASHISH26940/sharedvars/internal/journal"
	"github.com/ASHISH26940/sharedvars/internal/metrics"
	"github.com/ASHISH26940/sharedvars/internal/variant"
	"github.com/prometheus/client_golang/prometheus"
)

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv, err := Start(Config{Addr: "127.0.0.1:0"}, opts...)
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

// sendRaw writes msg on a fresh connection and closes it.
func sendRaw(t *testing.T, addr, msg string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()
}

func push(t *testing.T, srv *Server, name string, v variant.Variant) {
	t.Helper()
	if err := client.Push(context.Background(), srv.Addr(), name, v); err != nil {
		t.Fatalf("push %s: %v", name, err)
	}
}

// waitFor polls get until key holds want. Wire writes become visible only
// after the accept goroutine has applied them.
func waitFor(t *testing.T, srv *Server, key string, want variant.Variant) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := srv.Get(key); ok && got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, ok := srv.Get(key)
	t.Fatalf("key %q = %#v (present=%v), want %#v", key, got, ok, want)
}

func quit(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Quit(ctx); err != nil {
		t.Fatalf("quit failed: %v", err)
	}
}

func TestServer_DirectAddGet(t *testing.T) {
	srv := startServer(t)
	if srv.State() != StateRunning {
		t.Fatalf("expected state running after Start, got %s", srv.State())
	}

	srv.Add("Health", variant.Int(1))
	got, ok := srv.Get("Health")
	if !ok || got != variant.Int(1) {
		t.Errorf("expected Health = Int(1), got %#v (%v)", got, ok)
	}
}

func TestServer_RemoveAbsent(t *testing.T) {
	srv := startServer(t)
	if _, ok := srv.Remove("missing"); ok {
		t.Error("expected Remove on an absent key to report absent")
	}

	srv.Add("Gold", variant.Int(10))
	prior, ok := srv.Remove("Gold")
	if !ok || prior != variant.Int(10) {
		t.Errorf("expected Remove to return Int(10), got %#v (%v)", prior, ok)
	}
}

func TestServer_Scenario(t *testing.T) {
	srv := startServer(t)

	srv.Add("Health", variant.Int(1))
	srv.Add("Magic", variant.Float(123))

	push(t, srv, "Armor", variant.Int(12))
	waitFor(t, srv, "Armor", variant.Int(12))

	if got, _ := srv.Get("Magic"); got != variant.Float(123) {
		t.Errorf("expected Magic = Float(123), got %#v", got)
	}
	if got, _ := srv.Get("Health"); got != variant.Int(1) {
		t.Errorf("expected Health = Int(1), got %#v", got)
	}

	quit(t, srv)

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait blocked after quit")
	}
	if srv.State() != StateStopped {
		t.Errorf("expected state stopped after quit, got %s", srv.State())
	}

	// The store stays readable after the loop has exited.
	if got, _ := srv.Get("Armor"); got != variant.Int(12) {
		t.Errorf("expected Armor = Int(12) after quit, got %#v", got)
	}
}

func TestServer_RemoteKinds(t *testing.T) {
	srv := startServer(t)
	values := map[string]variant.Variant{
		"Int":    variant.Int(-5),
		"Float":  variant.Float(0.25),
		"Bool":   variant.Bool(true),
		"String": variant.String("Sir Rob"),
	}
	for name, v := range values {
		push(t, srv, name, v)
	}
	for name, v := range values {
		waitFor(t, srv, name, v)
	}
}

func TestServer_SequentialRemoteAdds(t *testing.T) {
	srv := startServer(t)
	push(t, srv, "A", variant.String("first"))
	push(t, srv, "B", variant.String("second"))

	waitFor(t, srv, "B", variant.String("second"))
	if got, _ := srv.Get("A"); got != variant.String("first") {
		t.Errorf("expected A = first, got %#v", got)
	}
}

func TestServer_RemoteOverwritesDirect(t *testing.T) {
	srv := startServer(t)
	srv.Add("Level", variant.Int(1))
	push(t, srv, "Level", variant.Float(2.5))
	waitFor(t, srv, "Level", variant.Float(2.5))
}

// String values keep colons after the third separator.
func TestServer_ColonInStringValue(t *testing.T) {
	srv := startServer(t)
	push(t, srv, "Url", variant.String("http://host:8080/path"))
	waitFor(t, srv, "Url", variant.String("http://host:8080/path"))
}

func TestServer_MalformedCommandDropped(t *testing.T) {
	srv := startServer(t)

	sendRaw(t, srv.Addr(), "a:i:Foo:not_a_number")
	sendRaw(t, srv.Addr(), "a:i:Bar")
	push(t, srv, "Next", variant.Int(7))
	waitFor(t, srv, "Next", variant.Int(7))

	if _, ok := srv.Get("Foo"); ok {
		t.Error("expected malformed command for Foo to be dropped")
	}
	if srv.State() != StateRunning {
		t.Errorf("expected server to keep running, got %s", srv.State())
	}
}

func TestServer_UnrecognisedIgnored(t *testing.T) {
	srv := startServer(t)

	sendRaw(t, srv.Addr(), "hello")
	sendRaw(t, srv.Addr(), "")
	push(t, srv, "After", variant.Bool(false))
	waitFor(t, srv, "After", variant.Bool(false))

	if n := srv.Len(); n != 1 {
		t.Errorf("expected only one variable, got %d", n)
	}
}

func TestServer_QuitTwice(t *testing.T) {
	srv := startServer(t)
	quit(t, srv)
	if err := srv.Quit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on second quit, got %v", err)
	}
}

func TestServer_RawQuitMessage(t *testing.T) {
	srv := startServer(t)
	sendRaw(t, srv.Addr(), "quit please")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("expected loop to exit on its own, got %v", err)
	}
}

func TestServer_BindConflict(t *testing.T) {
	first := startServer(t)
	_, err := Start(Config{Addr: first.Addr()})
	if !errors.Is(err, ErrBind) {
		t.Fatalf("expected ErrBind, got %v", err)
	}
}

func TestServer_ShutdownDeadline(t *testing.T) {
	srv := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("expected state stopped, got %s", srv.State())
	}
	if _, err := net.Dial("tcp", srv.Addr()); err == nil {
		t.Error("expected listener to be closed")
	}
}

// A peer that never closes its connection cannot hold up a forced shutdown.
func TestServer_ShutdownAbortsStalledConnection(t *testing.T) {
	srv := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.Write([]byte("a:i:Stalled:1"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if _, ok := srv.Get("Stalled"); ok {
		t.Error("expected partial message to be discarded")
	}
}

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestServer_JournalAndMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	reg := prometheus.NewRegistry()
	srv := startServer(t, WithJournal(j), WithMetrics(metrics.New(reg)))

	push(t, srv, "Armor", variant.Int(12))
	sendRaw(t, srv.Addr(), "a:b:Bad:maybe")
	sendRaw(t, srv.Addr(), "zzz")
	quit(t, srv)

	var ops []string
	err = journal.Replay(path, func(e journal.Entry) error {
		ops = append(ops, e.Op+":"+e.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(ops) != 2 || ops[0] != "add:Armor" || ops[1] != "quit:" {
		t.Errorf("unexpected journal contents: %v", ops)
	}

	checks := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"op": "add", "result": metrics.ResultApplied}, 1},
		{map[string]string{"op": "add", "result": metrics.ResultRejected}, 1},
		{map[string]string{"op": "ignore", "result": metrics.ResultIgnored}, 1},
		{map[string]string{"op": "quit", "result": metrics.ResultApplied}, 1},
	}
	for _, c := range checks {
		if got := gatherCounter(t, reg, "sharedvars_commands_total", c.labels); got != c.want {
			t.Errorf("commands_total%v = %v, want %v", c.labels, got, c.want)
		}
	}
	if got := gatherCounter(t, reg, "sharedvars_connections_total", nil); got != 4 {
		t.Errorf("connections_total = %v, want 4", got)
	}
}

// failingListener returns an error from Accept while failures remain,
// then delegates to the wrapped listener. failures < 0 fails forever.
type failingListener struct {
	net.Listener
	failures atomic.Int32
}

func (l *failingListener) Accept() (net.Conn, error) {
	if n := l.failures.Load(); n != 0 {
		if n > 0 {
			l.failures.Add(-1)
		}
		return nil, errors.New("accept: too many open files")
	}
	return l.Listener.Accept()
}

func serveFailing(t *testing.T, failures int32) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fl := &failingListener{Listener: ln}
	fl.failures.Store(failures)

	srv := newServer()
	srv.serve(fl)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestNextAcceptDelay(t *testing.T) {
	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	var d time.Duration
	for i, w := range want {
		d = nextAcceptDelay(d)
		if d != w {
			t.Fatalf("step %d: delay = %s, want %s", i, d, w)
		}
	}
	for i := 0; i < 20; i++ {
		d = nextAcceptDelay(d)
	}
	if d != maxAcceptDelay {
		t.Errorf("expected delay to cap at %s, got %s", maxAcceptDelay, d)
	}
}

func TestServer_RecoversFromAcceptErrors(t *testing.T) {
	srv := serveFailing(t, 3)
	push(t, srv, "After", variant.Int(3))
	waitFor(t, srv, "After", variant.Int(3))
	if srv.State() != StateRunning {
		t.Errorf("expected server to keep running, got %s", srv.State())
	}
}

// Close must not wait out the accept backoff.
func TestServer_CloseDuringAcceptBackoff(t *testing.T) {
	srv := serveFailing(t, -1)
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked while the accept loop was backing off")
	}
	if srv.State() != StateStopped {
		t.Errorf("expected state stopped, got %s", srv.State())
	}
}
