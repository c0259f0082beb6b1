// Package dictstore implements an in-memory, read-only store.Store
// serving a fixed, small file tree. It exists to give the dictserver
// command something to serve without touching the host filesystem.
package dictstore

import (
	"path"
	"sort"
	"strings"
	"time"

	"go.9p.dev/styx9p/internal/qidpool"
	"go.9p.dev/styx9p/store"
	"go.9p.dev/styx9p/styxproto"
)

type node struct {
	name     string
	contents []byte // nil for directories
	children []string
}

// Store serves a small, built-in directory tree:
//
//	/
//	dir/
//	dir/hello.txt   "Hello world!\n"
//	dir/☺           "Forståelse"
//
// All files are read-only.
type Store struct {
	nodes map[string]*node
	pool  *qidpool.Pool
	mtime uint32
}

// Default returns a Store serving the built-in dictionary tree.
func Default() *Store {
	s := &Store{
		nodes: make(map[string]*node),
		pool:  qidpool.New(),
		mtime: uint32(time.Now().Unix()),
	}
	s.mkdir("")
	s.mkdir("dir")
	s.mkfile("dir/hello.txt", []byte("Hello world!\n"))
	s.mkfile("dir/☺", []byte("Forståelse"))
	return s
}

func (s *Store) mkdir(p string) {
	s.nodes[p] = &node{name: path.Base(p)}
	if p != "" {
		parent := s.nodes[normalize(path.Dir(p))]
		parent.children = append(parent.children, p)
	}
}

func (s *Store) mkfile(p string, data []byte) {
	s.nodes[p] = &node{name: path.Base(p), contents: data}
	parent := s.nodes[path.Dir(p)]
	parent.children = append(parent.children, p)
}

func normalize(p string) string {
	if p == "." {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}

func (s *Store) lookup(p string) (*node, error) {
	n, ok := s.nodes[normalize(p)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n, nil
}

func (s *Store) qidFor(p string, n *node) styxproto.Qid {
	qtype := styxproto.QidType(0)
	if n.contents == nil {
		qtype = styxproto.QTDIR
	}
	return s.pool.LoadOrStore(normalize(p), uint8(qtype))
}

// Attach implements store.Store.
func (s *Store) Attach(uname, aname string) (styxproto.Qid, error) {
	if aname != "" {
		return nil, store.ErrNotFound
	}
	return s.Qid("")
}

// Qid implements store.Store.
func (s *Store) Qid(p string) (styxproto.Qid, error) {
	n, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	return s.qidFor(p, n), nil
}

func (s *Store) buildStat(p string, n *node) (styxproto.Stat, error) {
	buf := make([]byte, styxproto.MaxStatLen)
	st, _, err := styxproto.NewStat(buf, n.name, "glenda", "glenda", "glenda")
	if err != nil {
		return nil, err
	}
	mode := uint32(0444)
	if n.contents == nil {
		mode = styxproto.DMDIR | 0555
	}
	st.SetQid(s.qidFor(p, n))
	st.SetMode(mode)
	st.SetMtime(s.mtime)
	st.SetAtime(s.mtime)
	st.SetLength(int64(len(n.contents)))
	return st, nil
}

// Stat implements store.Store.
func (s *Store) Stat(p string) (styxproto.Stat, error) {
	n, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	return s.buildStat(p, n)
}

// Open implements store.Store.
func (s *Store) Open(p string, mode uint8) error {
	n, err := s.lookup(p)
	if err != nil {
		return err
	}
	rwmode := mode &^ (styxproto.OTRUNC | styxproto.OCEXEC | styxproto.ORCLOSE)
	if rwmode != styxproto.OREAD && rwmode != styxproto.OEXEC {
		return store.ErrReadOnly
	}
	if n.contents == nil && rwmode != styxproto.OREAD {
		return store.ErrNotAFile
	}
	return nil
}

// Create implements store.Store. dictstore is read-only.
func (s *Store) Create(dir, name string, perm uint32, mode uint8) (styxproto.Qid, error) {
	return nil, store.ErrReadOnly
}

// Read implements store.Store.
func (s *Store) Read(p string, offset int64, buf []byte) (int, error) {
	n, err := s.lookup(p)
	if err != nil {
		return 0, err
	}
	if n.contents == nil {
		return s.readdir(p, n, offset, buf)
	}
	if offset >= int64(len(n.contents)) {
		return 0, nil
	}
	return copy(buf, n.contents[offset:]), nil
}

func (s *Store) readdir(p string, n *node, offset int64, buf []byte) (int, error) {
	children := append([]string(nil), n.children...)
	sort.Strings(children)

	var blob []byte
	for _, child := range children {
		cn := s.nodes[child]
		st, err := s.buildStat(child, cn)
		if err != nil {
			continue
		}
		blob = append(blob, st...)
	}
	if offset >= int64(len(blob)) {
		return 0, nil
	}
	return copy(buf, blob[offset:]), nil
}

// Write implements store.Store. dictstore is read-only.
func (s *Store) Write(p string, offset int64, data []byte) (int, error) {
	return 0, store.ErrReadOnly
}

// Remove implements store.Store. dictstore is read-only.
func (s *Store) Remove(p string) error {
	return store.ErrReadOnly
}

// Wstat implements store.Store. dictstore is read-only.
func (s *Store) Wstat(p string, st styxproto.Stat) error {
	return store.ErrReadOnly
}
