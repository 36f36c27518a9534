package redis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"hedge-systemv1/internal/model"
)

// fakeRedis speaks just enough of the wire protocol for the publisher:
// PING, SET/GET on the latest keys, and pipeline replies for XADD and
// PUBLISH. Same role the httptest fakes play for the venue clients.
type fakeRedis struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis(t *testing.T) *fakeRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeRedis{ln: ln, data: make(map[string]string)}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRedis) addr() string { return f.ln.Addr().String() }

func (f *fakeRedis) set(key, val string) {
	f.mu.Lock()
	f.data[key] = val
	f.mu.Unlock()
}

func (f *fakeRedis) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		switch strings.ToLower(args[0]) {
		case "ping":
			io.WriteString(conn, "+PONG\r\n")
		case "set":
			f.set(args[1], args[2])
			io.WriteString(conn, "+OK\r\n")
		case "get":
			f.mu.Lock()
			val, ok := f.data[args[1]]
			f.mu.Unlock()
			if !ok {
				io.WriteString(conn, "$-1\r\n")
			} else {
				fmt.Fprintf(conn, "$%d\r\n%s\r\n", len(val), val)
			}
		case "xadd":
			io.WriteString(conn, "$3\r\n1-1\r\n")
		case "publish":
			io.WriteString(conn, ":1\r\n")
		default:
			io.WriteString(conn, "+OK\r\n")
		}
	}
}

// readCommand parses one inbound command array of bulk strings.
func readCommand(r *bufio.Reader) ([]string, error) {
	header, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || header[0] != '*' {
		return nil, fmt.Errorf("unexpected header %q", header)
	}
	n, err := strconv.Atoi(header[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sizeLine, err := readLine(r)
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimPrefix(sizeLine, "$"))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2) // payload + CRLF
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func TestPublishHedgeThenLatestHedge(t *testing.T) {
	srv := newFakeRedis(t)
	pub, err := New(PublisherConfig{Addr: srv.addr()}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pub.Close()

	ctx := context.Background()
	want := model.HedgeResult{
		Strategy: "delta_neutral",
		Asset:    "BTC",
		Size:     -0.25,
		Cost:     12525.0,
	}
	if err := pub.PublishHedge(ctx, "BTC", want); err != nil {
		t.Fatalf("PublishHedge: %v", err)
	}

	got, ok, err := pub.LatestHedge(ctx, "BTC")
	if err != nil {
		t.Fatalf("LatestHedge: %v", err)
	}
	if !ok {
		t.Fatal("LatestHedge: not found after publish")
	}
	if got.Strategy != want.Strategy || got.Asset != want.Asset {
		t.Errorf("got %s/%s, want %s/%s", got.Strategy, got.Asset, want.Strategy, want.Asset)
	}
	if got.Size != want.Size || got.Cost != want.Cost {
		t.Errorf("size/cost = %g/%g, want %g/%g", got.Size, got.Cost, want.Size, want.Cost)
	}
}

func TestLatestHedgeMissing(t *testing.T) {
	srv := newFakeRedis(t)
	pub, err := New(PublisherConfig{Addr: srv.addr()}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pub.Close()

	_, ok, err := pub.LatestHedge(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("LatestHedge: %v", err)
	}
	if ok {
		t.Error("found a hedge on an empty server")
	}
}

func TestLatestHedgeBadPayload(t *testing.T) {
	srv := newFakeRedis(t)
	srv.set("hedge:latest:BTC", "not json")

	pub, err := New(PublisherConfig{Addr: srv.addr()}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pub.Close()

	_, _, err = pub.LatestHedge(context.Background(), "BTC")
	if err == nil {
		t.Fatal("expected decode error for corrupt payload")
	}
}
