// Package server runs a 9P2000 file service over a net.Listener,
// dispatching each accepted connection to a fresh session.Session
// backed by a shared store.Store.
package server

import (
	"net"
	"runtime"
	"time"

	"aqwari.net/retry"
	"golang.org/x/net/context"

	"go.9p.dev/styx9p/internal/util"
	"go.9p.dev/styx9p/session"
	"go.9p.dev/styx9p/store"
	"go.9p.dev/styx9p/styxproto"
)

// Logger receives diagnostic information during a Server's operation.
// It is implemented by *log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// A Server serves a Store to any number of concurrently connected
// clients.
type Server struct {
	Store store.Store

	// Msize is the maximum 9P message size offered during version
	// negotiation. If zero, styxproto.DefaultBufSize is used.
	Msize int64

	// Logger, if non-nil, receives diagnostics about accept errors,
	// panics recovered from a connection, and per-connection I/O
	// errors.
	Logger Logger
}

func (s *Server) logf(format string, v ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}

// Serve accepts connections on l until it returns a permanent error.
// Temporary accept errors are retried with exponential backoff, in
// the manner of net/http's server loop.
func (s *Server) Serve(l net.Listener) error {
	backoff := retry.Exponential(time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if util.IsTempErr(err) {
				try++
				wait := backoff(try)
				s.logf("9p: accept error: %v; retrying in %v", err, wait)
				time.Sleep(wait)
				continue
			}
			return err
		}
		try = 0
		go s.serveConn(rwc)
	}
}

func (s *Server) serveConn(rwc net.Conn) {
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			s.logf("9p: panic serving %v: %v\n%s", rwc.RemoteAddr(), err, buf)
		}
	}()
	defer rwc.Close()

	msize := s.Msize
	if msize <= 0 {
		msize = styxproto.DefaultBufSize
	}

	conn := styxproto.NewConn(rwc, msize)
	sess := session.New(s.Store)

	cx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-done:
		}
	}()

	if err := styxproto.Serve(conn, cx, sess); err != nil {
		s.logf("9p: connection %v: %v", rwc.RemoteAddr(), err)
	}
	close(done)
}

// ListenAndServe listens on network/addr and serves store until the
// listener is closed or a permanent accept error occurs.
func ListenAndServe(network, addr string, s store.Store, logger Logger) error {
	l, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	defer l.Close()
	srv := &Server{Store: s, Logger: logger}
	return srv.Serve(l)
}
