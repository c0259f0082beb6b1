package posixstore

import (
	"os"
	"path/filepath"
	"testing"

	"go.9p.dev/styx9p/store"
	"go.9p.dev/styx9p/styxproto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello, world!\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAttachAndQid(t *testing.T) {
	s := newTestStore(t)
	qid, err := s.Attach("glenda", "")
	if err != nil {
		t.Fatal(err)
	}
	if qid.Type()&styxproto.QTDIR == 0 {
		t.Errorf("root qid type = %x, want QTDIR set", qid.Type())
	}
	if _, err := s.Attach("glenda", "nonesuch"); err == nil {
		t.Error("expected error attaching to unknown tree")
	}
}

func TestStatFile(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Stat("hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(st.Name()) != "hello.txt" {
		t.Errorf("name = %q, want hello.txt", st.Name())
	}
	if st.Length() != int64(len("hello, world!\n")) {
		t.Errorf("length = %d, want %d", st.Length(), len("hello, world!\n"))
	}
}

func TestReadDirSorted(t *testing.T) {
	s := newTestStore(t)
	buf := make([]byte, 64*1024)
	n, err := s.Read("", 0, buf)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for rest := buf[:n]; len(rest) > 0; {
		st := styxproto.Stat(rest[:styxproto.Stat(rest).Size()+2])
		names = append(names, string(st.Name()))
		rest = rest[len(st):]
	}
	if len(names) != 2 || names[0] != "hello.txt" || names[1] != "sub" {
		t.Errorf("got names %v, want [hello.txt sub]", names)
	}
}

func TestCreateAndRemove(t *testing.T) {
	s := newTestStore(t)
	qid, err := s.Create("", "new.txt", 0644, styxproto.OWRITE)
	if err != nil {
		t.Fatal(err)
	}
	if qid == nil {
		t.Fatal("nil qid from Create")
	}
	if _, err := s.Create("", "new.txt", 0644, styxproto.OWRITE); err != store.ErrExists {
		t.Errorf("recreate err = %v, want ErrExists", err)
	}
	if err := s.Remove("new.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Stat("new.txt"); err != store.ErrNotFound {
		t.Errorf("stat after remove = %v, want ErrNotFound", err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("", "out.txt", 0644, styxproto.OWRITE); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write("out.txt", 0, []byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 6)
	n, err := s.Read("out.txt", 0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "abcdef" {
		t.Errorf("read %q, want abcdef", buf[:n])
	}
}
