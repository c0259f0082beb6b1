package server_test

import (
	"io"
	"testing"

	qt "github.com/frankban/quicktest"

	"go.9p.dev/styx9p/client"
	"go.9p.dev/styx9p/dictstore"
	"go.9p.dev/styx9p/internal/netutil"
	"go.9p.dev/styx9p/server"
	"go.9p.dev/styx9p/styxproto"
)

// TestServeOverPipeListener drives a full Server/Session/Store stack
// against a real client.Client, using an in-process PipeListener so
// the test needs no sockets or ports.
func TestServeOverPipeListener(t *testing.T) {
	c := qt.New(t)

	var l netutil.PipeListener
	srv := &server.Server{Store: dictstore.Default()}
	go srv.Serve(&l)
	defer l.Close()

	conn, err := l.Dial()
	c.Assert(err, qt.IsNil)

	cl, err := client.NewFromConn(conn, "glenda", "")
	c.Assert(err, qt.IsNil)
	defer cl.Close()

	entries, err := cl.Ls("/dir")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)

	f, err := cl.Open("/dir/hello.txt", styxproto.OREAD)
	c.Assert(err, qt.IsNil)
	defer f.Close()

	data, err := io.ReadAll(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "Hello world!\n")
}
