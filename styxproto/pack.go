package styxproto

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// Shorthand for parsing numbers
var (
	guint16 = binary.LittleEndian.Uint16
	guint32 = binary.LittleEndian.Uint32
	guint64 = binary.LittleEndian.Uint64

	buint16 = binary.LittleEndian.PutUint16
	buint32 = binary.LittleEndian.PutUint32
	buint64 = binary.LittleEndian.PutUint64
)

// bit-packing functions. Each writes its value, little-endian, to
// the given bufio.Writer.

func puint8(w *bufio.Writer, v uint8) {
	w.WriteByte(v)
}

func puint16(w *bufio.Writer, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.Write(buf[:])
}

func puint32(w *bufio.Writer, v ...uint32) {
	var buf [4]byte
	for _, vv := range v {
		binary.LittleEndian.PutUint32(buf[:], vv)
		w.Write(buf[:])
	}
}

func puint64(w *bufio.Writer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func pbyte(w *bufio.Writer, p []byte) {
	if len(p) > math.MaxUint16 {
		panic(errLongStat)
	}
	puint16(w, uint16(len(p)))
	w.Write(p)
}

func pqid(w *bufio.Writer, qids ...Qid) {
	for _, q := range qids {
		w.Write(q[:13])
	}
}

func pstring(w *bufio.Writer, s ...string) {
	for _, ss := range s {
		puint16(w, uint16(len(ss)))
		io.WriteString(w, ss)
	}
}

func pheader(w *bufio.Writer, size uint32, mtype uint8, tag uint16, extra ...uint32) {
	puint32(w, size)
	puint8(w, mtype)
	puint16(w, tag)
	puint32(w, extra...)
}
