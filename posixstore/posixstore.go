// Package posixstore implements a store.Store backed by a directory
// tree on the host filesystem.
package posixstore

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"go.9p.dev/styx9p/internal/qidpool"
	"go.9p.dev/styx9p/internal/styxfile"
	"go.9p.dev/styx9p/internal/sys"
	"go.9p.dev/styx9p/store"
	"go.9p.dev/styx9p/styxproto"
)

// statTTL bounds how long an os.Lstat result is reused between the
// qid lookup that precedes a Twalk reply and the Tstat that usually
// follows it.
const statTTL = 2 * time.Second

// Store serves files rooted at Dir over 9P. The zero value is not
// usable; construct one with New.
type Store struct {
	dir   string
	pool  *qidpool.Pool
	stats *cache.Cache
}

// New returns a Store that serves the directory tree rooted at dir.
// dir must already exist and be a directory.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, store.ErrNotDir
	}
	return &Store{
		dir:   abs,
		pool:  qidpool.New(),
		stats: cache.New(statTTL, statTTL*2),
	}, nil
}

// realpath converts a store-relative path ("", "a/b", ...) into an
// absolute host path under s.dir.
func (s *Store) realpath(p string) string {
	if p == "" || p == "." {
		return s.dir
	}
	return filepath.Join(s.dir, filepath.FromSlash(p))
}

func (s *Store) lstat(p string) (os.FileInfo, error) {
	if v, ok := s.stats.Get(p); ok {
		return v.(os.FileInfo), nil
	}
	fi, err := os.Lstat(s.realpath(p))
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	s.stats.SetDefault(p, fi)
	return fi, nil
}

func (s *Store) qidFor(p string, fi os.FileInfo) styxproto.Qid {
	qtype := styxfile.QidType(styxfile.Mode9P(fi.Mode()))
	return s.pool.LoadOrStore(p, qtype)
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
	fi, err := s.lstat(p)
	if err != nil {
		return nil, err
	}
	return s.qidFor(p, fi), nil
}

func (s *Store) buildStat(p string, fi os.FileInfo) (styxproto.Stat, error) {
	uid, gid, muid := sys.FileOwner(fi)
	buf := make([]byte, styxproto.MaxStatLen)
	st, _, err := styxproto.NewStat(buf, fi.Name(), uid, gid, muid)
	if err != nil {
		return nil, err
	}
	mode := styxfile.Mode9P(fi.Mode())
	st.SetQid(s.qidFor(p, fi))
	st.SetMode(mode)
	st.SetMtime(uint32(fi.ModTime().Unix()))
	st.SetAtime(st.Mtime())
	if fi.IsDir() {
		st.SetLength(0)
	} else {
		st.SetLength(fi.Size())
	}
	return st, nil
}

// Stat implements store.Store.
func (s *Store) Stat(p string) (styxproto.Stat, error) {
	fi, err := s.lstat(p)
	if err != nil {
		return nil, err
	}
	return s.buildStat(p, fi)
}

// Open implements store.Store.
func (s *Store) Open(p string, mode uint8) error {
	fi, err := s.lstat(p)
	if err != nil {
		return err
	}
	rwmode := mode &^ (styxproto.OTRUNC | styxproto.OCEXEC | styxproto.ORCLOSE)
	if fi.IsDir() {
		if rwmode != styxproto.OREAD {
			return store.ErrNotAFile
		}
		return nil
	}
	if mode&styxproto.OTRUNC != 0 {
		if err := os.Truncate(s.realpath(p), 0); err != nil {
			return err
		}
		s.stats.Delete(p)
	}
	return nil
}

// Create implements store.Store.
func (s *Store) Create(dir, name string, perm uint32, mode uint8) (styxproto.Qid, error) {
	if name == "." || name == ".." || strings.Contains(name, "/") {
		return nil, store.ErrNotFound
	}
	dfi, err := s.lstat(dir)
	if err != nil {
		return nil, err
	}
	if !dfi.IsDir() {
		return nil, store.ErrNotDir
	}
	child := path.Join(dir, name)
	full := s.realpath(child)

	if perm&styxproto.DMDIR != 0 {
		if err := os.Mkdir(full, styxfile.ModeOS(perm)|0100); err != nil {
			if os.IsExist(err) {
				return nil, store.ErrExists
			}
			return nil, err
		}
	} else {
		f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_EXCL, styxfile.ModeOS(perm).Perm())
		if err != nil {
			if os.IsExist(err) {
				return nil, store.ErrExists
			}
			return nil, err
		}
		f.Close()
	}
	s.stats.Delete(child)
	fi, err := s.lstat(child)
	if err != nil {
		return nil, err
	}
	return s.qidFor(child, fi), nil
}

// Read implements store.Store.
func (s *Store) Read(p string, offset int64, buf []byte) (int, error) {
	fi, err := s.lstat(p)
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return s.readdir(p, offset, buf)
	}
	f, err := os.Open(s.realpath(p))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := f.ReadAt(buf, offset)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// readdir builds the sorted, concatenated Stat blob for a directory
// and returns the slice of it starting at offset.
func (s *Store) readdir(dir string, offset int64, buf []byte) (int, error) {
	entries, err := os.ReadDir(s.realpath(dir))
	if err != nil {
		return 0, err
	}
	// os.ReadDir already returns entries sorted by name.

	var blob []byte
	for _, ent := range entries {
		info, err := ent.Info()
		if err != nil {
			continue
		}
		child := path.Join(dir, ent.Name())
		st, err := s.buildStat(child, info)
		if err != nil {
			continue
		}
		blob = append(blob, st...)
	}
	if offset >= int64(len(blob)) {
		return 0, nil
	}
	n := copy(buf, blob[offset:])
	return n, nil
}

// Write implements store.Store.
func (s *Store) Write(p string, offset int64, data []byte) (int, error) {
	fi, err := s.lstat(p)
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return 0, store.ErrNotAFile
	}
	f, err := os.OpenFile(s.realpath(p), os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	s.stats.Delete(p)
	return f.WriteAt(data, offset)
}

// Remove implements store.Store.
func (s *Store) Remove(p string) error {
	if p == "" {
		return store.ErrReadOnly
	}
	if err := os.Remove(s.realpath(p)); err != nil {
		if os.IsNotExist(err) {
			return store.ErrNotFound
		}
		return err
	}
	s.stats.Delete(p)
	s.pool.Del(p)
	return nil
}

// Wstat implements store.Store.
func (s *Store) Wstat(p string, st styxproto.Stat) error {
	full := s.realpath(p)
	fi, err := s.lstat(p)
	if err != nil {
		return err
	}

	if name := string(st.Name()); name != "" && name != fi.Name() {
		newpath := path.Join(path.Dir(p), name)
		if err := os.Rename(full, s.realpath(newpath)); err != nil {
			return err
		}
		s.stats.Delete(p)
		full = s.realpath(newpath)
		p = newpath
	}
	if mode := st.Mode(); mode != store.NoChange32 {
		if err := os.Chmod(full, styxfile.ModeOS(mode).Perm()); err != nil {
			return err
		}
	}
	if length := st.Length(); uint64(length) != store.NoChange64 {
		if err := os.Truncate(full, length); err != nil {
			return err
		}
	}
	if atime, mtime := st.Atime(), st.Mtime(); atime != store.NoChange32 || mtime != store.NoChange32 {
		var at, mt time.Time // zero values leave that time unchanged
		if atime != store.NoChange32 {
			at = time.Unix(int64(atime), 0)
		}
		if mtime != store.NoChange32 {
			mt = time.Unix(int64(mtime), 0)
		}
		if err := os.Chtimes(full, at, mt); err != nil {
			return err
		}
	}
	s.stats.Delete(p)
	return nil
}
