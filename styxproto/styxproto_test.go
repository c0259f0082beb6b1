package styxproto

import (
	"bytes"
	"fmt"
	"testing"
)

func sampleClientTraffic() []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.Tversion(8192, "9P2000")
	e.Tattach(0, 0, NoFid, "glenda", "")
	e.Twalk(1, 0, 1, "usr", "glenda")
	e.Topen(2, 1, OREAD)
	e.Tread(3, 1, 0, 8192)
	e.Tclunk(4, 1)
	e.Flush()
	return buf.Bytes()
}

func sampleServerTraffic() []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	qidbuf := make([]byte, QidLen)
	qid, _, _ := NewQid(qidbuf, 0, 1, 42)
	e.Rversion(8192, "9P2000")
	e.Rattach(0, qid)
	e.Rwalk(1, qid)
	e.Ropen(2, qid, 8192)
	e.Rread(3, []byte("hello, world!"))
	e.Rclunk(4)
	e.Flush()
	return buf.Bytes()
}

func TestRequests(t *testing.T) {
	testParseMsg(t, bytes.NewReader(sampleClientTraffic()))
}

func TestResponse(t *testing.T) {
	testParseMsg(t, bytes.NewReader(sampleServerTraffic()))
}

func testParseMsg(t *testing.T, r *bytes.Reader) {
	d := NewDecoder(r)
	for d.Next() {
		m := d.Msg()
		if bad, ok := m.(BadMessage); ok {
			t.Errorf("bad message: %s", bad.Err)
			continue
		}
		if s, ok := m.(fmt.Stringer); ok {
			t.Logf("%d %s", m.Tag(), s.String())
		} else {
			t.Logf("%d %v", m.Tag(), m)
		}
	}
	if err := d.Err(); err != nil {
		t.Error(err)
	}
}
