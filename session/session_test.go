package session

import (
	"net"
	"testing"

	"golang.org/x/net/context"

	"go.9p.dev/styx9p/dictstore"
	"go.9p.dev/styx9p/styxproto"
)

// serve starts a Session on one end of an in-process pipe and returns
// an Encoder/Decoder pair hooked up to the other end, so a test can
// drive the session like a real client would.
func serve(t *testing.T) (*styxproto.Encoder, *styxproto.Decoder, func()) {
	t.Helper()
	server, client := net.Pipe()

	sess := New(dictstore.Default())
	conn := styxproto.NewConn(server, styxproto.DefaultBufSize)

	go styxproto.Serve(conn, context.Background(), sess)

	enc := styxproto.NewEncoder(client)
	dec := styxproto.NewDecoder(client)
	return enc, dec, func() { client.Close() }
}

func nextMsg(t *testing.T, dec *styxproto.Decoder) styxproto.Msg {
	t.Helper()
	if !dec.Next() {
		t.Fatalf("no message decoded: %v", dec.Err())
	}
	return dec.Msg()
}

func version(t *testing.T, enc *styxproto.Encoder, dec *styxproto.Decoder) {
	t.Helper()
	enc.Tversion(styxproto.DefaultBufSize, "9P2000")
	enc.Flush()
	m := nextMsg(t, dec)
	if _, ok := m.(styxproto.Rversion); !ok {
		t.Fatalf("reply to Tversion = %T, want Rversion", m)
	}
}

func TestSessionWalkOpenRead(t *testing.T) {
	enc, dec, closeFn := serve(t)
	defer closeFn()

	version(t, enc, dec)

	enc.Tattach(1, 0, styxproto.NoFid, "glenda", "")
	enc.Flush()
	if _, ok := nextMsg(t, dec).(styxproto.Rattach); !ok {
		t.Fatal("expected Rattach")
	}

	if err := enc.Twalk(2, 0, 1, "dir", "hello.txt"); err != nil {
		t.Fatal(err)
	}
	enc.Flush()
	rwalk, ok := nextMsg(t, dec).(styxproto.Rwalk)
	if !ok {
		t.Fatal("expected Rwalk")
	}
	if rwalk.Nwqid() != 2 {
		t.Fatalf("nwqid = %d, want 2", rwalk.Nwqid())
	}

	enc.Topen(3, 1, styxproto.OREAD)
	enc.Flush()
	if _, ok := nextMsg(t, dec).(styxproto.Ropen); !ok {
		t.Fatal("expected Ropen")
	}

	if err := enc.Tread(4, 1, 0, 64); err != nil {
		t.Fatal(err)
	}
	enc.Flush()
	rread, ok := nextMsg(t, dec).(styxproto.Rread)
	if !ok {
		t.Fatal("expected Rread")
	}
	data := make([]byte, rread.Count())
	if _, err := rread.Read(data); err != nil {
		t.Fatal(err)
	}
	if string(data) != "Hello world!\n" {
		t.Errorf("read %q, want %q", data, "Hello world!\n")
	}
}

func TestSessionClunkUnknownFid(t *testing.T) {
	enc, dec, closeFn := serve(t)
	defer closeFn()

	version(t, enc, dec)

	enc.Tclunk(9, 42)
	enc.Flush()
	if _, ok := nextMsg(t, dec).(styxproto.Rclunk); !ok {
		t.Fatal("expected Rclunk even for an unknown fid")
	}
}

func TestSessionZeroLengthWalkClones(t *testing.T) {
	enc, dec, closeFn := serve(t)
	defer closeFn()

	version(t, enc, dec)

	enc.Tattach(1, 0, styxproto.NoFid, "glenda", "")
	enc.Flush()
	nextMsg(t, dec)

	if err := enc.Twalk(2, 0, 5); err != nil {
		t.Fatal(err)
	}
	enc.Flush()
	rwalk, ok := nextMsg(t, dec).(styxproto.Rwalk)
	if !ok {
		t.Fatal("expected Rwalk")
	}
	if rwalk.Nwqid() != 0 {
		t.Errorf("nwqid = %d, want 0 for zero-length walk", rwalk.Nwqid())
	}
}
