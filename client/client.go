// Package client implements a 9P2000 client suitable for scripting
// and interactive use.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"sync"

	"go.9p.dev/styx9p/internal/pool"
	"go.9p.dev/styx9p/styxproto"
)

// ErrClosed is returned by any Client method called after Close.
var ErrClosed = errors.New("client: connection closed")

// A Client is a single 9P2000 connection to a server, together with
// the fid and tag bookkeeping needed to drive it.
type Client struct {
	conn *styxproto.Conn
	nc   net.Conn

	tagmu   sync.Mutex
	tags    map[uint16]chan styxproto.Msg
	tagPool pool.TagPool

	fidPool pool.FidPool

	root uint32
	mu   sync.Mutex
	err  error

	readErr chan error
}

// Dial connects to a 9P2000 server at addr over network, negotiates
// the protocol version, and attaches to aname as uname.
func Dial(network, addr, uname, aname string) (*Client, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return NewFromConn(nc, uname, aname)
}

// NewFromConn wraps an already-established net.Conn as a Client,
// negotiating the protocol version and attaching to aname as uname.
// Useful with a non-TCP net.Conn, such as a netutil.PipeListener's.
func NewFromConn(nc net.Conn, uname, aname string) (*Client, error) {
	c := &Client{
		conn:    styxproto.NewConn(nc, styxproto.DefaultBufSize),
		nc:      nc,
		tags:    make(map[uint16]chan styxproto.Msg),
		readErr: make(chan error, 1),
	}
	go c.readLoop()

	if err := c.version(); err != nil {
		c.nc.Close()
		return nil, err
	}
	root := c.allocFid()
	reply, err := c.roundTrip(func(tag uint16) error {
		c.conn.Tattach(tag, root, styxproto.NoFid, uname, aname)
		return nil
	})
	if err != nil {
		c.nc.Close()
		return nil, err
	}
	if _, ok := reply.(styxproto.Rattach); !ok {
		c.nc.Close()
		return nil, asError(reply)
	}
	c.root = root
	return c, nil
}

func asError(m styxproto.Msg) error {
	if rerr, ok := m.(styxproto.Rerror); ok {
		return errors.New(string(rerr.Ename()))
	}
	return fmt.Errorf("unexpected reply %T", m)
}

// version negotiates the protocol version. Tversion and Rversion
// always use styxproto.NoTag rather than a tag handed out by newTag,
// since they precede any other transaction on the connection.
func (c *Client) version() error {
	const version = "9P2000"

	ch := make(chan styxproto.Msg, 1)
	c.tagmu.Lock()
	c.tags[styxproto.NoTag] = ch
	c.tagmu.Unlock()
	defer func() {
		c.tagmu.Lock()
		delete(c.tags, styxproto.NoTag)
		c.tagmu.Unlock()
	}()

	c.conn.Tversion(styxproto.DefaultBufSize, version)
	if err := c.conn.Encoder.Flush(); err != nil {
		return err
	}
	var reply styxproto.Msg
	select {
	case reply = <-ch:
	case err := <-c.readErr:
		if err == nil {
			err = ErrClosed
		}
		return err
	}
	if bad, ok := reply.(styxproto.BadMessage); ok {
		return bad.Err
	}
	rv, ok := reply.(styxproto.Rversion)
	if !ok {
		return asError(reply)
	}
	if rv.Version() != version {
		return fmt.Errorf("server does not support %s", version)
	}
	return nil
}

// Close releases the client's connection. Any fids that remain open
// are not explicitly clunked.
func (c *Client) Close() error {
	return c.nc.Close()
}

func (c *Client) readLoop() {
	for c.conn.Decoder.Next() {
		m := c.conn.Decoder.Msg()
		c.tagmu.Lock()
		ch, ok := c.tags[m.Tag()]
		c.tagmu.Unlock()
		if ok {
			ch <- m
		}
	}
	c.readErr <- c.conn.Decoder.Err()
}

// newTag allocates a tag from the pool. TagPoolCeiling is exactly
// styxproto.NoTag, so the pool never hands out the reserved tag.
func (c *Client) newTag() uint16 {
	tag, ok := c.tagPool.Get()
	if !ok {
		panic("client: tag pool exhausted")
	}
	return tag
}

// roundTrip allocates a tag, invokes send to encode and flush a
// request using it, and waits for the matching reply.
func (c *Client) roundTrip(send func(tag uint16) error) (styxproto.Msg, error) {
	tag := c.newTag()
	ch := make(chan styxproto.Msg, 1)

	c.tagmu.Lock()
	c.tags[tag] = ch
	c.tagmu.Unlock()
	defer func() {
		c.tagmu.Lock()
		delete(c.tags, tag)
		c.tagmu.Unlock()
		c.tagPool.Free(tag)
	}()

	if err := send(tag); err != nil {
		return nil, err
	}
	if err := c.conn.Encoder.Flush(); err != nil {
		return nil, err
	}
	select {
	case m := <-ch:
		if bad, ok := m.(styxproto.BadMessage); ok {
			return nil, bad.Err
		}
		return m, nil
	case err := <-c.readErr:
		if err == nil {
			err = ErrClosed
		}
		return nil, err
	}
}

// allocFid returns a fid number not currently in use. FidPoolCeiling
// is exactly styxproto.NoFid, so the pool never hands out the fid
// reserved to mean "no fid".
func (c *Client) allocFid() uint32 {
	fid, ok := c.fidPool.Get()
	if !ok {
		panic("client: fid pool exhausted")
	}
	return fid
}

func (c *Client) freeFid(fid uint32) {
	c.fidPool.Free(fid)
}

// walk walks from the root fid through the path components of p,
// allocating and returning a new fid bound to the final component.
// Path walks longer than styxproto.MaxWElem elements are split into
// multiple Twalk requests, per the 9P2000 wire limit.
func (c *Client) walk(p string) (uint32, styxproto.Qid, error) {
	elems := splitPath(p)
	newfid := c.allocFid()

	if len(elems) == 0 {
		reply, err := c.roundTrip(func(tag uint16) error {
			return c.conn.Twalk(tag, c.root, newfid)
		})
		if err != nil {
			c.freeFid(newfid)
			return 0, nil, err
		}
		if _, ok := reply.(styxproto.Rwalk); !ok {
			c.freeFid(newfid)
			return 0, nil, asError(reply)
		}
		return newfid, nil, nil
	}

	cur := c.root
	var qid styxproto.Qid
	for len(elems) > 0 {
		chunk := elems
		if len(chunk) > styxproto.MaxWElem {
			chunk = chunk[:styxproto.MaxWElem]
		}
		reply, err := c.roundTrip(func(tag uint16) error {
			return c.conn.Twalk(tag, cur, newfid, chunk...)
		})
		if err != nil {
			c.freeFid(newfid)
			return 0, nil, err
		}
		rwalk, ok := reply.(styxproto.Rwalk)
		if !ok {
			c.freeFid(newfid)
			return 0, nil, asError(reply)
		}
		if rwalk.Nwqid() != len(chunk) {
			c.freeFid(newfid)
			return 0, nil, fmt.Errorf("walk: not found: %s", p)
		}
		qid = rwalk.Wqid(rwalk.Nwqid() - 1)
		cur = newfid
		elems = elems[len(chunk):]
	}
	return newfid, qid, nil
}

func splitPath(p string) []string {
	p = path.Clean("/" + p)
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Stat returns the Stat structure describing the file at p.
func (c *Client) Stat(p string) (styxproto.Stat, error) {
	fid, _, err := c.walk(p)
	if err != nil {
		return nil, err
	}
	defer c.clunk(fid)

	reply, err := c.roundTrip(func(tag uint16) error {
		c.conn.Tstat(tag, fid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rstat, ok := reply.(styxproto.Rstat)
	if !ok {
		return nil, asError(reply)
	}
	return append(styxproto.Stat(nil), rstat.Stat()...), nil
}

func (c *Client) clunk(fid uint32) {
	defer c.freeFid(fid)
	c.roundTrip(func(tag uint16) error {
		c.conn.Tclunk(tag, fid)
		return nil
	})
}

// Ls returns Stat structures for the entries of the directory at p.
func (c *Client) Ls(p string) ([]styxproto.Stat, error) {
	fid, _, err := c.walk(p)
	if err != nil {
		return nil, err
	}
	defer c.clunk(fid)

	reply, err := c.roundTrip(func(tag uint16) error {
		c.conn.Topen(tag, fid, styxproto.OREAD)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, ok := reply.(styxproto.Ropen); !ok {
		return nil, asError(reply)
	}

	const readChunk = 8192

	var entries []styxproto.Stat
	var offset int64
	for {
		reply, err := c.roundTrip(func(tag uint16) error {
			return c.conn.Tread(tag, fid, offset, readChunk)
		})
		if err != nil {
			return nil, err
		}
		rread, ok := reply.(styxproto.Rread)
		if !ok {
			return nil, asError(reply)
		}
		if rread.Count() == 0 {
			break
		}
		buf := make([]byte, rread.Count())
		if _, err := rread.Read(buf); err != nil {
			return nil, err
		}
		for rest := buf; len(rest) > 0; {
			n := int(styxproto.Stat(rest).Size()) + 2
			if n > len(rest) {
				break
			}
			entries = append(entries, append(styxproto.Stat(nil), rest[:n]...))
			rest = rest[n:]
		}
		offset += int64(rread.Count())
	}
	return entries, nil
}

// Mkdir creates a new, empty directory at p.
func (c *Client) Mkdir(p string, perm uint32) error {
	dir, name := path.Split(path.Clean(p))
	fid, _, err := c.walk(strings.TrimSuffix(dir, "/"))
	if err != nil {
		return err
	}
	defer c.clunk(fid)

	reply, err := c.roundTrip(func(tag uint16) error {
		c.conn.Tcreate(tag, fid, name, perm|styxproto.DMDIR, styxproto.OREAD)
		return nil
	})
	if err != nil {
		return err
	}
	if _, ok := reply.(styxproto.Rcreate); !ok {
		return asError(reply)
	}
	return nil
}

// Create creates a new file at p with the given permissions, and
// returns a handle that can be written to.
func (c *Client) Create(p string, perm uint32) (*File, error) {
	dir, name := path.Split(path.Clean(p))
	fid, _, err := c.walk(strings.TrimSuffix(dir, "/"))
	if err != nil {
		return nil, err
	}

	reply, err := c.roundTrip(func(tag uint16) error {
		c.conn.Tcreate(tag, fid, name, perm, styxproto.ORDWR)
		return nil
	})
	if err != nil {
		c.clunk(fid)
		return nil, err
	}
	if _, ok := reply.(styxproto.Rcreate); !ok {
		c.clunk(fid)
		return nil, asError(reply)
	}
	return &File{c: c, fid: fid}, nil
}

// Open opens the file at p with the given 9P open mode.
func (c *Client) Open(p string, mode uint8) (*File, error) {
	fid, _, err := c.walk(p)
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(func(tag uint16) error {
		c.conn.Topen(tag, fid, mode)
		return nil
	})
	if err != nil {
		c.clunk(fid)
		return nil, err
	}
	if _, ok := reply.(styxproto.Ropen); !ok {
		c.clunk(fid)
		return nil, asError(reply)
	}
	return &File{c: c, fid: fid}, nil
}

// A File is an open fid, supporting reads and writes at arbitrary
// offsets.
type File struct {
	c      *Client
	fid    uint32
	offset int64
}

// Read reads up to len(p) bytes starting at the file's current
// offset, and advances the offset by the number of bytes read.
func (f *File) Read(p []byte) (int, error) {
	reply, err := f.c.roundTrip(func(tag uint16) error {
		return f.c.conn.Tread(tag, f.fid, f.offset, int64(len(p)))
	})
	if err != nil {
		return 0, err
	}
	rread, ok := reply.(styxproto.Rread)
	if !ok {
		return 0, asError(reply)
	}
	if rread.Count() == 0 {
		return 0, io.EOF
	}
	n, err := rread.Read(p[:rread.Count()])
	f.offset += int64(n)
	return n, err
}

// Write writes p to the file starting at its current offset, and
// advances the offset by the number of bytes written.
func (f *File) Write(p []byte) (int, error) {
	reply, err := f.c.roundTrip(func(tag uint16) error {
		_, err := f.c.conn.Twrite(tag, f.fid, f.offset, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	rwrite, ok := reply.(styxproto.Rwrite)
	if !ok {
		return 0, asError(reply)
	}
	n := int(rwrite.Count())
	f.offset += int64(n)
	return n, nil
}

// Close clunks the file's fid.
func (f *File) Close() error {
	f.c.clunk(f.fid)
	return nil
}
