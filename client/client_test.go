package client_test

import (
	"net"
	"testing"

	qt "github.com/frankban/quicktest"

	"go.9p.dev/styx9p/client"
	"go.9p.dev/styx9p/dictstore"
	"go.9p.dev/styx9p/server"
)

// startServer spins up a server.Server on a loopback TCP listener
// backed by an in-memory dictstore, and returns its address.
func startServer(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &server.Server{Store: dictstore.Default()}
	go srv.Serve(l)
	t.Cleanup(func() { l.Close() })
	return l.Addr().String()
}

func TestClientLsAndRead(t *testing.T) {
	c := qt.New(t)
	addr := startServer(t)

	cl, err := client.Dial("tcp", addr, "glenda", "")
	c.Assert(err, qt.IsNil)
	defer cl.Close()

	entries, err := cl.Ls("dir")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)

	f, err := cl.Open("dir/hello.txt", 0)
	c.Assert(err, qt.IsNil)
	defer f.Close()

	buf := make([]byte, 64)
	n, err := f.Read(buf)
	c.Assert(err, qt.IsNil)
	c.Assert(string(buf[:n]), qt.Equals, "Hello world!\n")
}

func TestClientStat(t *testing.T) {
	c := qt.New(t)
	addr := startServer(t)

	cl, err := client.Dial("tcp", addr, "glenda", "")
	c.Assert(err, qt.IsNil)
	defer cl.Close()

	st, err := cl.Stat("dir/hello.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(st.Name()), qt.Equals, "hello.txt")
}

func TestClientWritesRejected(t *testing.T) {
	c := qt.New(t)
	addr := startServer(t)

	cl, err := client.Dial("tcp", addr, "glenda", "")
	c.Assert(err, qt.IsNil)
	defer cl.Close()

	err = cl.Mkdir("dir/newdir", 0755)
	c.Assert(err, qt.IsNotNil)
}
