package styxproto

import (
	"bytes"
	"strings"
	"testing"
)

// TestEncode writes one of every message type with an Encoder, then
// reads them back with a Decoder to make sure nothing we produce is
// rejected by our own parser.
func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.MaxSize = DefaultBufSize

	qidbuf := make([]byte, QidLen)
	qid, _, err := NewQid(qidbuf, 1, 203, 0x83208)
	if err != nil {
		t.Fatal(err)
	}

	statbuf := make([]byte, MaxStatLen)
	stat, _, err := NewStat(statbuf, "georgia", "gopher", "gopher", "")
	if err != nil {
		t.Fatal(err)
	}
	stat.SetLength(492)
	stat.SetMode(02775)
	stat.SetQid(qid)

	e.Tversion(1<<12, "9P2000")
	e.Rversion(1<<11, "9P2000")
	e.Tauth(1, 1, "gopher", "")
	e.Rauth(1, qid)
	e.Tattach(2, 2, NoFid, "gopher", "")
	e.Rattach(2, qid)
	e.Rerror(0, "some error")
	e.Tflush(3, 2)
	e.Rflush(3)
	if err := e.Twalk(4, 4, 4, "var", "log", "messages"); err != nil {
		t.Fatal(err)
	}
	if err := e.Rwalk(4, qid); err != nil {
		t.Fatal(err)
	}
	e.Topen(0, 1, 1)
	e.Ropen(0, qid, 300)
	e.Tcreate(1, 4, "frogs.txt", 0755, 3)
	e.Rcreate(1, qid, 1200)
	if err := e.Tread(0, 32, 803280, 5308); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Rread(0, []byte("hello, world!")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Twrite(1, 4, 10, []byte("goodbye, world!")); err != nil {
		t.Fatal(err)
	}
	e.Rwrite(1, 0)
	e.Tclunk(5, 4)
	e.Rclunk(5)
	e.Tremove(18, 9)
	e.Rremove(18)
	e.Tstat(6, 13)
	e.Rstat(6, stat)
	e.Twstat(7, 3, stat)
	e.Rwstat(7)

	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := e.Err(); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(&buf)
	var n int
	for d.Next() {
		m := d.Msg()
		if bad, ok := m.(BadMessage); ok {
			t.Errorf("decoded bad message: %s", bad.Err)
			continue
		}
		t.Logf("→ %s", m)
		n++
	}
	if err := d.Err(); err != nil {
		t.Fatal(err)
	}
	if n != 27 {
		t.Errorf("decoded %d messages, want 27", n)
	}
}

func TestEncodeTruncation(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	e.Tversion(8192, strings.Repeat("x", MaxVersionLen+10))
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(&buf)
	if !d.Next() {
		t.Fatalf("expected a decoded message, got error %v", d.Err())
	}
	tv, ok := d.Msg().(Tversion)
	if !ok {
		t.Fatalf("decoded %T, want Tversion", d.Msg())
	}
	if len(tv.Version()) != MaxVersionLen {
		t.Errorf("version field is %d bytes, want %d", len(tv.Version()), MaxVersionLen)
	}
}
