package styxproto

import (
	"encoding/binary"
	"fmt"
)

// The Stat structure describes a directory entry. It is contained in
// Rstat and Twstat messages. Tread requests on directories return
// a Stat structure for each directory entry.
type Stat []byte

// Size returns the length (in bytes) of the stat structure, minus the
// two-byte size.
func (s Stat) Size() uint16 { return guint16(s[0:2]) }

// The 2-byte type field contains implementation-specific data
// that is outside the scope of the 9P protocol.
func (s Stat) Type() uint16 { return guint16(s[2:4]) }

// The 4-byte dev field contains implementation-specific data
// that is outside the scope of the 9P protocol. In Plan 9, it holds
// an identifier for the block device that stores the file.
func (s Stat) Dev() uint32 { return guint32(s[4:8]) }

// Qid returns the unique identifier of the file.
func (s Stat) Qid() Qid { return Qid(s[8:21]) }

// Mode contains the permissions and flags set for the file.
// Permissions follow the unix model; the 3 least-significant
// 3-bit triads describe read, write, and execute access for
// owners, group members, and other users, respectively.
func (s Stat) Mode() uint32 { return guint32(s[21:25]) }

// Atime returns the last access time for the file, in seconds since the epoch.
func (s Stat) Atime() uint32 { return binary.LittleEndian.Uint32(s[25:29]) }

// Mtime returns the last time the file was modified, in seconds since the epoch.
func (s Stat) Mtime() uint32 { return binary.LittleEndian.Uint32(s[29:33]) }

// Length returns the length of the file in bytes.
func (s Stat) Length() int64 { return int64(binary.LittleEndian.Uint64(s[33:41])) }

// Name returns the name of the file.
func (s Stat) Name() []byte { return msg(s).nthField(41, 0) }

// Uid returns the name of the owner of the file.
func (s Stat) Uid() []byte { return msg(s).nthField(41, 1) }

// Gid returns the group of the file.
func (s Stat) Gid() []byte { return msg(s).nthField(41, 2) }

// Muid returns the name of the user who last modified the file
func (s Stat) Muid() []byte { return msg(s).nthField(41, 3) }

func (s Stat) String() string {
	return fmt.Sprintf("type=%x dev=%x qid=%q mode=%o atime=%d mtime=%d "+
		"length=%d name=%q uid=%q gid=%q muid=%q", s.Type(), s.Dev(), s.Qid(),
		s.Mode(), s.Atime(), s.Mtime(), s.Length(), s.Name(), s.Uid(),
		s.Gid(), s.Muid())
}

// verifyStat ensures that a Stat structure is valid and safe to use
// as a Stat. This *must* be called on all received Stats, otherwise
// there is no guarantee that a bad actor threw in some illegal sizes
// or strings. data is the full stat blob, including its own leading
// size[2] field.
func verifyStat(data []byte) error {
	var field []byte

	// size[2] type[2] dev[4] qid[13] mode[4] atime[4] mtime[4] length[8] name[s] uid[s] gid[s] muid[s]
	if len(data) < minStatLen {
		return errShortStat
	} else if len(data) > maxStatLen {
		return errLongStat
	}
	if length := guint64(data[33:41]); length > MaxFileLen {
		return errLongLength
	}
	name, rest, err := verifyField(data[41:], false, 6)
	if err != nil {
		return err
	} else if err := verifyString(name); err != nil {
		return err
	} else if len(name) > MaxFilenameLen {
		return errLongFilename
	}

	for i := 0; i < 3; i++ {
		field, rest, err = verifyField(rest, i == 2, 4-i*2)
		if err != nil {
			return err
		} else if err := verifyString(field); err != nil {
			return err
		} else if len(field) > MaxUidLen {
			return errLongUsername
		}
	}
	return nil
}

// NewStat creates a new Stat structure using buf as backing storage.
// buf must be long enough to hold the encoded Stat, which is never
// longer than MaxStatLen bytes. NewStat returns the encoded Stat, the
// unused remainder of buf, and an error if any of the string fields
// are too long or buf is too small.
//
// The returned Stat has its Qid, Mode, Atime, Mtime and Length fields
// zeroed; use the Set* methods to fill them in before sending it over
// the wire.
func NewStat(buf []byte, name, uid, gid, muid string) (Stat, []byte, error) {
	if len(name) > MaxFilenameLen {
		return nil, buf, errLongFilename
	}
	if len(uid) > MaxUidLen || len(gid) > MaxUidLen || len(muid) > MaxUidLen {
		return nil, buf, errLongUsername
	}
	size := minStatLen - 2 + len(name) + len(uid) + len(gid) + len(muid)
	if len(buf) < size+2 {
		return nil, buf, errTooSmall
	}
	s := Stat(buf[:size+2])
	binary.LittleEndian.PutUint16(s[0:2], uint16(size))
	for i := 2; i < 41; i++ {
		s[i] = 0
	}
	off := 41
	for _, v := range []string{name, uid, gid, muid} {
		binary.LittleEndian.PutUint16(s[off:off+2], uint16(len(v)))
		copy(s[off+2:], v)
		off += 2 + len(v)
	}
	return s, buf[off:], nil
}

// SetType sets the implementation-specific type field of a Stat.
func (s Stat) SetType(t uint16) { binary.LittleEndian.PutUint16(s[2:4], t) }

// SetDev sets the implementation-specific dev field of a Stat.
func (s Stat) SetDev(dev uint32) { binary.LittleEndian.PutUint32(s[4:8], dev) }

// SetQid sets the qid field of a Stat.
func (s Stat) SetQid(qid Qid) { copy(s[8:21], qid[:13]) }

// SetMode sets the permission and flag bits of a Stat.
func (s Stat) SetMode(mode uint32) { binary.LittleEndian.PutUint32(s[21:25], mode) }

// SetAtime sets the last-access time of a Stat, in seconds since the epoch.
func (s Stat) SetAtime(t uint32) { binary.LittleEndian.PutUint32(s[25:29], t) }

// SetMtime sets the last-modified time of a Stat, in seconds since the epoch.
func (s Stat) SetMtime(t uint32) { binary.LittleEndian.PutUint32(s[29:33], t) }

// SetLength sets the file length of a Stat, in bytes.
func (s Stat) SetLength(n int64) { binary.LittleEndian.PutUint64(s[33:41], uint64(n)) }
