package dictstore

import (
	"testing"

	"go.9p.dev/styx9p/store"
	"go.9p.dev/styx9p/styxproto"
)

func TestAttach(t *testing.T) {
	s := Default()
	qid, err := s.Attach("glenda", "")
	if err != nil {
		t.Fatal(err)
	}
	if qid.Type() != styxproto.QTDIR {
		t.Errorf("root qid type = %v, want QTDIR", qid.Type())
	}
}

func TestReadHello(t *testing.T) {
	s := Default()
	if err := s.Open("dir/hello.txt", styxproto.OREAD); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	n, err := s.Read("dir/hello.txt", 0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "Hello world!\n" {
		t.Errorf("read %q, want %q", buf[:n], "Hello world!\n")
	}
}

func TestReadUnicodeName(t *testing.T) {
	s := Default()
	buf := make([]byte, 64)
	n, err := s.Read("dir/☺", 0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "Forståelse" {
		t.Errorf("read %q, want %q", buf[:n], "Forståelse")
	}
}

func TestDirListingSorted(t *testing.T) {
	s := Default()
	buf := make([]byte, 4096)
	n, err := s.Read("dir", 0, buf)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for rest := buf[:n]; len(rest) > 0; {
		st := styxproto.Stat(rest[:styxproto.Stat(rest).Size()+2])
		names = append(names, string(st.Name()))
		rest = rest[len(st):]
	}
	if len(names) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(names), names)
	}
	if names[0] != "hello.txt" || names[1] != "☺" {
		t.Errorf("entries = %v, want [hello.txt ☺]", names)
	}
}

func TestWritesRejected(t *testing.T) {
	s := Default()
	if _, err := s.Write("dir/hello.txt", 0, []byte("x")); err != store.ErrReadOnly {
		t.Errorf("write err = %v, want ErrReadOnly", err)
	}
	if _, err := s.Create("dir", "new.txt", 0644, styxproto.OWRITE); err != store.ErrReadOnly {
		t.Errorf("create err = %v, want ErrReadOnly", err)
	}
	if err := s.Remove("dir/hello.txt"); err != store.ErrReadOnly {
		t.Errorf("remove err = %v, want ErrReadOnly", err)
	}
}
