package styxproto

import (
	"bufio"
	"errors"
	"io"
)

var errFillOverflow = errors.New("cannot fill buffer past maxInt")

// maxInt is the largest value representable by the platform's int type,
// used to bound how much data a single Peek can touch.
const maxInt = int(^uint(0) >> 1)

// Design goals of the decoder:
//   - minimize allocations
//   - resilient to malicious input (invalid/overlarge sizes)
//   - a message larger than the Decoder's internal buffer is skipped
//     and reported as a bad message, rather than read into memory
//     unbounded

// NewDecoder returns a Decoder with an internal buffer of size
// DefaultBufSize.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, DefaultBufSize)
}

// NewDecoderSize returns a Decoder with an internal buffer of size
// max(MinBufSize, bufsize) bytes. A Decoder with a larger buffer can
// accept larger messages, at the cost of more memory per connection.
func NewDecoderSize(r io.Reader, bufsize int) *Decoder {
	if bufsize < MinBufSize {
		bufsize = MinBufSize
	}
	return &Decoder{r: r, br: bufio.NewReaderSize(r, bufsize), MaxSize: -1}
}

// A Decoder provides an interface for reading a stream of 9P
// messages from an io.Reader. Successive calls to the Next
// method of a Decoder will fetch and validate a single 9P message
// from the input stream, until EOF is encountered, or another
// error is encountered.
//
// A Decoder is not safe for concurrent use. Usage of any Decoder
// method should be delegated to a single thread of execution, or
// protected by a mutex.
type Decoder struct {
	// MaxSize is the maximum size message that a Decoder will accept,
	// not counting the size[4] field itself. If MaxSize is negative,
	// a Decoder will accept any message that fits in its internal
	// buffer.
	MaxSize int64

	r io.Reader

	br *bufio.Reader

	// current selection in the buffered data
	start, pos int

	// Last fetched message. Slices into br's internal buffer, so it
	// is only valid until the next call to Next.
	msg Msg

	// total size, in bytes including size[4], of the last fetched
	// message, used to advance br past it on the next call to Next.
	msglen int64

	err error
}

// Reset discards any buffered data and resets the Decoder to read
// from r.
func (s *Decoder) Reset(r io.Reader) {
	s.r = r
	s.br.Reset(r)
	s.start, s.pos = 0, 0
	s.msg, s.err = nil, nil
	s.msglen = 0
}

// Err returns the first error encountered during parsing. io.EOF is
// not considered to be an error and is not relayed by Err.
func (s *Decoder) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Msg returns the last 9P message decoded from the stream. It is
// only valid until the next call to Next.
func (s *Decoder) Msg() Msg {
	return s.msg
}

// Next fetches the next 9P message from the Decoder's underlying
// io.Reader. It returns false when no further messages are
// available, either because the stream ended or because an error
// was encountered; Err distinguishes the two.
//
// Malformed or oversize messages are not treated as IO errors: Next
// returns true and Msg returns a BadMessage value, so a caller can
// reply with Rerror and keep the connection alive.
func (s *Decoder) Next() bool {
	if s.msg != nil {
		if err := discardN(s.br, s.msglen); err != nil {
			s.err = err
			s.msg = nil
			return false
		}
		s.msg, s.msglen = nil, 0
	}
	if s.err != nil {
		return false
	}
	s.start, s.pos = 0, 0
	s.msg, s.err = s.fetchMessage()
	return s.msg != nil
}

// discardN skips n bytes from r, reading past whatever is currently
// buffered if necessary. n may exceed r's buffer size.
func discardN(r *bufio.Reader, n int64) error {
	for n > 0 {
		chunk := maxInt
		if n < int64(chunk) {
			chunk = int(n)
		}
		k, err := r.Discard(chunk)
		n -= int64(k)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Decoder) dot() []byte {
	buf, err := s.br.Peek(s.pos)
	if err != nil {
		panic("styxproto: dot() called without a prior successful fill()")
	}
	return buf[s.start:s.pos]
}

func (s *Decoder) growdot(n int) ([]byte, error) {
	if err := s.fill(n - (s.pos - s.start)); err != nil {
		return nil, err
	}
	s.pos = s.start + n
	return s.dot(), nil
}

// fill guarantees that s.pos+n bytes are buffered, relative to the
// start of the current message.
func (s *Decoder) fill(n int) error {
	if maxInt-n < s.pos {
		return errFillOverflow
	}
	_, err := s.br.Peek(s.pos + n)
	return err
}

// fetchMessage reads, validates and parses exactly one 9P message.
func (s *Decoder) fetchMessage() (Msg, error) {
	hdr, err := s.growdot(7)
	if err != nil {
		if err == bufio.ErrBufferFull {
			return s.badMessage(NoTag, errTooBig, 7)
		}
		return nil, err
	}
	size := int64(guint32(hdr[:4]))
	mtype := hdr[4]
	tag := guint16(hdr[5:7])

	if size+4 < minMsgSize {
		return s.badMessage(tag, errTooSmall, 7)
	}
	if size > maxMsgSize-4 {
		return s.badMessage(tag, errTooBig, 7)
	}
	if s.MaxSize >= 0 && size > s.MaxSize {
		return s.badMessage(tag, ErrMaxSize, size+4)
	}
	if !validMsgType(mtype) {
		return s.badMessage(tag, errInvalidMsgType, size+4)
	}

	total := size + 4
	if total > int64(maxInt) {
		return s.badMessage(tag, errTooBig, total)
	}
	body, err := s.growdot(int(total))
	if err != nil {
		if err == bufio.ErrBufferFull {
			return s.badMessage(tag, errTooBig, total)
		}
		return nil, err
	}
	s.msglen = total

	m := msg(body)
	if err := verifySizeAndType(m); err != nil {
		return s.badMessage(tag, err, total)
	}
	parse := msgParseLUT[mtype]
	out, err := parse(m, s.br)
	if err != nil {
		return s.badMessage(tag, err, total)
	}
	return out, nil
}

func (s *Decoder) badMessage(tag uint16, err error, skip int64) (Msg, error) {
	s.msglen = skip
	return BadMessage{Err: err, tag: tag}, nil
}
