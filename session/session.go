// Package session implements the per-connection 9P transaction engine
// that mediates between the wire protocol and a store.Store. A
// Session owns the fid table for a single connection; the Store
// itself is stateless with respect to fids and may be shared by any
// number of concurrent Sessions.
package session

import (
	"io"
	"io/ioutil"
	"path"
	"sync"

	"go.9p.dev/styx9p/store"
	"go.9p.dev/styx9p/styxproto"
)

type fid struct {
	path   string
	qid    styxproto.Qid
	opened bool
	mode   uint8
	isRoot bool
}

// A Session serves 9P requests against a Store on behalf of a single
// client connection. It implements styxproto.Server, so it can be
// driven directly by styxproto.Serve.
//
// A Session is not safe for use by more than one goroutine at a time
// issuing requests concurrently on the same fid, but styxproto.Serve
// only ever calls into it from a single goroutine per connection.
type Session struct {
	store store.Store

	mu       sync.Mutex
	fids     map[uint32]*fid
	nroots   int
	done     chan struct{}
	closeErr error
}

// New returns a Session that serves requests against s.
func New(s store.Store) *Session {
	return &Session{
		store: s,
		fids:  make(map[uint32]*fid),
		done:  make(chan struct{}),
	}
}

// Done returns a channel that is closed once every fid established by
// a Tattach has been clunked, i.e. once the client has no further use
// for the connection.
func (sess *Session) Done() <-chan struct{} { return sess.done }

func (sess *Session) terminate() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	select {
	case <-sess.done:
	default:
		close(sess.done)
	}
}

// Reset clears the fid table. Nothing in this module calls it: a
// Tversion sent on an already-negotiated connection is answered by
// styxproto.Serve with an Rerror, and the fid table is left as it is.
func (sess *Session) Reset() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.fids = make(map[uint32]*fid)
	sess.nroots = 0
}

func rerror(w *styxproto.ResponseWriter, tag uint16, err error) {
	w.Rerror(tag, "%s", err)
}

// Auth implements styxproto.Server. Authentication is not supported;
// clients must attach with afid set to styxproto.NoFid.
func (sess *Session) Auth(w *styxproto.ResponseWriter, m styxproto.Tauth) {
	defer w.Close()
	w.Rerror(m.Tag(), "authentication not required")
}

// Attach implements styxproto.Server.
func (sess *Session) Attach(w *styxproto.ResponseWriter, m styxproto.Tattach) {
	defer w.Close()

	if m.Afid() != styxproto.NoFid {
		w.Rerror(m.Tag(), "authentication not required")
		return
	}
	qid, err := sess.store.Attach(string(m.Uname()), string(m.Aname()))
	if err != nil {
		rerror(w, m.Tag(), err)
		return
	}

	sess.mu.Lock()
	sess.fids[m.Fid()] = &fid{path: "", qid: qid, isRoot: true}
	sess.nroots++
	sess.mu.Unlock()

	w.Rattach(m.Tag(), qid)
}

// Walk implements styxproto.Server.
func (sess *Session) Walk(w *styxproto.ResponseWriter, m styxproto.Twalk) {
	defer w.Close()

	sess.mu.Lock()
	src, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}

	n := m.Nwname()
	if n == 0 {
		sess.mu.Lock()
		sess.fids[m.Newfid()] = &fid{path: src.path, qid: src.qid}
		sess.mu.Unlock()
		w.Rwalk(m.Tag())
		return
	}

	if src.opened {
		w.Rerror(m.Tag(), "walk of open fid %d", m.Fid())
		return
	}

	cur := src.path
	qids := make([]styxproto.Qid, 0, n)
	for i := 0; i < n; i++ {
		next := path.Join(cur, string(m.Wname(i)))
		if string(m.Wname(i)) == ".." {
			next = path.Dir(cur)
			if next == "." {
				next = ""
			}
		}
		qid, err := sess.store.Qid(next)
		if err != nil {
			break
		}
		qids = append(qids, qid)
		cur = next
	}

	if len(qids) == 0 {
		w.Rerror(m.Tag(), "Not found.")
		return
	}
	if len(qids) == n {
		sess.mu.Lock()
		sess.fids[m.Newfid()] = &fid{path: cur, qid: qids[len(qids)-1]}
		sess.mu.Unlock()
	}
	w.Rwalk(m.Tag(), qids...)
}

// Open implements styxproto.Server.
func (sess *Session) Open(w *styxproto.ResponseWriter, m styxproto.Topen) {
	defer w.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if f.opened {
		w.Rerror(m.Tag(), "fid %d already open", m.Fid())
		return
	}
	if err := sess.store.Open(f.path, m.Mode()); err != nil {
		rerror(w, m.Tag(), err)
		return
	}
	qid, err := sess.store.Qid(f.path)
	if err != nil {
		rerror(w, m.Tag(), err)
		return
	}

	sess.mu.Lock()
	f.opened = true
	f.mode = m.Mode()
	f.qid = qid
	sess.mu.Unlock()

	w.Ropen(m.Tag(), qid, 0)
}

// Create implements styxproto.Server.
func (sess *Session) Create(w *styxproto.ResponseWriter, m styxproto.Tcreate) {
	defer w.Close()

	name := string(m.Name())
	if name == "." || name == ".." {
		w.Rerror(m.Tag(), "invalid file name %q", name)
		return
	}

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if f.opened {
		w.Rerror(m.Tag(), "fid %d already open", m.Fid())
		return
	}

	qid, err := sess.store.Create(f.path, name, m.Perm(), m.Mode())
	if err != nil {
		rerror(w, m.Tag(), err)
		return
	}

	sess.mu.Lock()
	f.path = path.Join(f.path, name)
	f.qid = qid
	f.opened = true
	f.mode = m.Mode()
	sess.mu.Unlock()

	w.Rcreate(m.Tag(), qid, 0)
}

// Read implements styxproto.Server.
func (sess *Session) Read(w *styxproto.ResponseWriter, m styxproto.Tread) {
	defer w.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if !f.opened {
		w.Rerror(m.Tag(), "fid %d not open", m.Fid())
		return
	}

	buf := make([]byte, m.Count())
	n, err := sess.store.Read(f.path, int64(m.Offset()), buf)
	if err != nil {
		rerror(w, m.Tag(), err)
		return
	}
	if _, err := w.Rread(m.Tag(), buf[:n]); err != nil {
		return
	}
}

// Write implements styxproto.Server.
func (sess *Session) Write(w *styxproto.ResponseWriter, m styxproto.Twrite) {
	defer w.Close()
	defer m.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		io.Copy(ioutil.Discard, m)
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if !f.opened {
		io.Copy(ioutil.Discard, m)
		w.Rerror(m.Tag(), "fid %d not open", m.Fid())
		return
	}

	data, err := ioutil.ReadAll(m)
	if err != nil {
		w.Rerror(m.Tag(), "%s", err)
		return
	}
	n, err := sess.store.Write(f.path, m.Offset(), data)
	if err != nil {
		rerror(w, m.Tag(), err)
		return
	}
	if n != len(data) {
		w.Rerror(m.Tag(), "short write")
		return
	}
	w.Rwrite(m.Tag(), int64(n))
}

// Clunk implements styxproto.Server. A fid is always released,
// whether or not it was valid.
func (sess *Session) Clunk(w *styxproto.ResponseWriter, m styxproto.Tclunk) {
	defer w.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	delete(sess.fids, m.Fid())
	if ok && f.isRoot {
		sess.nroots--
	}
	done := ok && f.isRoot && sess.nroots <= 0
	sess.mu.Unlock()

	if done {
		sess.terminate()
	}
	w.Rclunk(m.Tag())
}

// Remove implements styxproto.Server. The fid is released whether or
// not the removal succeeds.
func (sess *Session) Remove(w *styxproto.ResponseWriter, m styxproto.Tremove) {
	defer w.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	delete(sess.fids, m.Fid())
	sess.mu.Unlock()

	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if err := sess.store.Remove(f.path); err != nil {
		rerror(w, m.Tag(), err)
		return
	}
	w.Rremove(m.Tag())
}

// Stat implements styxproto.Server.
func (sess *Session) Stat(w *styxproto.ResponseWriter, m styxproto.Tstat) {
	defer w.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	st, err := sess.store.Stat(f.path)
	if err != nil {
		rerror(w, m.Tag(), err)
		return
	}
	w.Rstat(m.Tag(), st)
}

// Wstat implements styxproto.Server.
func (sess *Session) Wstat(w *styxproto.ResponseWriter, m styxproto.Twstat) {
	defer w.Close()

	sess.mu.Lock()
	f, ok := sess.fids[m.Fid()]
	sess.mu.Unlock()
	if !ok {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	st := m.Stat()
	if err := sess.store.Wstat(f.path, st); err != nil {
		rerror(w, m.Tag(), err)
		return
	}
	if name := string(st.Name()); name != "" {
		sess.mu.Lock()
		f.path = path.Join(path.Dir(f.path), name)
		sess.mu.Unlock()
	}
	w.Rwstat(m.Tag())
}
