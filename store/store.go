// Package store declares the interface a file tree must implement to be
// served over 9P2000 by the session package.
package store

import (
	"errors"

	"go.9p.dev/styx9p/styxproto"
)

// Errors returned by Store methods are converted to Rerror text by the
// session dispatcher. The sentinel errors below get their own ename;
// anything else is reported with err.Error().
var (
	ErrNotFound  = errors.New("not found")
	ErrNotDir    = errors.New("not a directory")
	ErrExists    = errors.New("already exists")
	ErrReadOnly  = errors.New("read only")
	ErrNotAFile  = errors.New("not a file")
	ErrOpen      = errors.New("cannot open file")
	ErrAuthDenied = errors.New("auth required")
)

// A Store implements the filesystem backing a 9P session. Paths are
// forward-slash separated strings, relative to the store's root ("").
// Directories other than the root never end in a slash.
//
// A Store does not track which fids are open on which paths; the
// session that calls it owns that bookkeeping, so a single Store value
// can be shared by any number of concurrent sessions as long as its
// own internal state (if any) is synchronized.
type Store interface {
	// Attach authenticates uname's access to the file tree named aname
	// and returns the qid of the tree's root. aname is "" unless the
	// store exposes more than one named tree.
	Attach(uname, aname string) (styxproto.Qid, error)

	// Qid returns the qid identifying the file at path. It returns
	// ErrNotFound if no such file exists.
	Qid(path string) (styxproto.Qid, error)

	// Stat returns a Stat structure describing the file at path.
	Stat(path string) (styxproto.Stat, error)

	// Open validates that path may be opened in the given 9P open
	// mode (one of the O* constants in styxproto, possibly OR'd with
	// OTRUNC).
	Open(path string, mode uint8) error

	// Create creates a new file named name inside the directory at
	// dir, with the given permission bits and open mode, and returns
	// its qid. name must not be "." or "..", and must not already
	// exist in dir.
	Create(dir, name string, perm uint32, mode uint8) (styxproto.Qid, error)

	// Read reads into p starting at offset bytes into the file or
	// directory at path, and returns the number of bytes read. Reads
	// past the end of a file return (0, nil). For a directory, Read
	// returns a concatenation of Stat structures for its entries, in
	// lexicographic order by name.
	Read(path string, offset int64, p []byte) (int, error)

	// Write writes data to the file at path, starting at offset, and
	// returns the number of bytes written.
	Write(path string, offset int64, data []byte) (int, error)

	// Remove deletes the file or empty directory at path.
	Remove(path string) error

	// Wstat applies the non-sentinel fields of stat to the file at
	// path. A non-empty Name renames the file. Sentinel values
	// (0xFFFFFFFF for 32-bit fields, "" for strings, and the
	// corresponding 64-bit sentinel for Length) mean "leave
	// unchanged".
	Wstat(path string, stat styxproto.Stat) error
}

// NoChange32 is the sentinel value meaning "do not modify this field"
// for the 32-bit integer fields of a Twstat-carried Stat.
const NoChange32 = 0xFFFFFFFF

// NoChange64 is the sentinel value meaning "do not modify this field"
// for the Length field of a Twstat-carried Stat.
const NoChange64 = 1<<64 - 1
