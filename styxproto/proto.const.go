package styxproto

// Message type codes, sent as the single byte following the
// size[4] field of every 9P message. These values are fixed by
// the 9P2000 wire protocol.
const (
	msgTversion uint8 = 100 + iota
	msgRversion
	msgTauth
	msgRauth
	msgTattach
	msgRattach
	msgTerror // not sent on the wire; reserved by the protocol
	msgRerror
	msgTflush
	msgRflush
	msgTwalk
	msgRwalk
	msgTopen
	msgRopen
	msgTcreate
	msgRcreate
	msgTread
	msgRread
	msgTwrite
	msgRwrite
	msgTclunk
	msgRclunk
	msgTremove
	msgRremove
	msgTstat
	msgRstat
	msgTwstat
	msgRwstat
)

// maxSizeLUT holds the size, in bytes (not counting the leading
// size[4] field), of messages whose length never varies. Looking up
// a variable-length message type (Tversion, Twalk, Tcreate, Rread,
// Twrite, Rstat, Twstat, ...) in this table is meaningless; those
// callers compute their own size from minSizeLUT plus the length of
// their variable fields.
var maxSizeLUT = minSizeLUT

// NoTag is used as the tag for a Tversion or Rversion message, which
// precede all other traffic on a connection and so cannot collide
// with a pending transaction.
const NoTag uint16 = 0xFFFF

// NoFid is used in a Tattach message to signal that no
// authentication file is required.
const NoFid uint32 = 0xFFFFFFFF

// QidLen is the length, in bytes, of an encoded Qid.
const QidLen = 13

// Bits in the mode field of a Stat structure, and the mode
// argument of Twstat.
const (
	DMDIR    = 0x80000000 // mode bit for directories
	DMAPPEND = 0x40000000 // mode bit for append-only files
	DMEXCL   = 0x20000000 // mode bit for exclusive-use files
	DMMOUNT  = 0x10000000 // mode bit for mounted channels
	DMAUTH   = 0x08000000 // mode bit for authentication files
	DMTMP    = 0x04000000 // mode bit for non-backed-up files
	DMREAD   = 0x4         // mode bit for read permission
	DMWRITE  = 0x2         // mode bit for write permission
	DMEXEC   = 0x1         // mode bit for execute permission
)

// MaxFileLen is the maximum value allowed in the length field of a
// Stat structure.
const MaxFileLen = MaxOffset

// Flags for the mode field of Topen and Tcreate messages.
const (
	OREAD   = 0  // open read-only
	OWRITE  = 1  // open write-only
	ORDWR   = 2  // open read-write
	OEXEC   = 3  // execute (== read but check execute permission)
	OTRUNC  = 16 // or'ed in (except for exec), truncate file first
	OCEXEC  = 32 // or'ed in, close on exec
	ORCLOSE = 64 // or'ed in, remove on close
)
