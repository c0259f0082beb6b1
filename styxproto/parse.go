package styxproto

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
)

type closer struct {
	io.Reader
}

func (r closer) Close() error {
	_, err := io.Copy(ioutil.Discard, r)
	return err
}

var msgParseLUT = [...]func(msg, *bufio.Reader) (Msg, error){
	msgTversion: parseTversion,
	msgRversion: parseRversion,
	msgTauth:    parseTauth,
	msgRauth:    parseRauth,
	msgTattach:  parseTattach,
	msgRattach:  parseRattach,
	msgRerror:   parseRerror,
	msgTflush:   parseTflush,
	msgRflush:   parseRflush,
	msgTwalk:    parseTwalk,
	msgRwalk:    parseRwalk,
	msgTopen:    parseTopen,
	msgRopen:    parseRopen,
	msgTcreate:  parseTcreate,
	msgRcreate:  parseRcreate,
	msgTread:    parseTread,
	msgRread:    parseRread,
	msgTwrite:   parseTwrite,
	msgRwrite:   parseRwrite,
	msgTclunk:   parseTclunk,
	msgRclunk:   parseRclunk,
	msgTremove:  parseTremove,
	msgRremove:  parseRremove,
	msgTstat:    parseTstat,
	msgRstat:    parseRstat,
	msgTwstat:   parseTwstat,
	msgRwstat:   parseRwstat,
}

func validMsgType(m uint8) bool {
	return int(m) < len(msgParseLUT) && msgParseLUT[m] != nil
}

func verifyQid(qid []byte) error {
	switch QidType(qid[0]) {
	case QTDIR, QTAPPEND, QTEXCL, QTMOUNT, QTAUTH, QTTMP, QTFILE:
		return nil
	}
	return errInvalidQidType
}

func parseTversion(dot msg, _ *bufio.Reader) (Msg, error) {
	if ver, _, err := verifyField(dot.Body()[4:], true, 0); err != nil {
		return nil, err
	} else if err := verifyString(ver); err != nil {
		return nil, err
	} else if len(ver) > MaxVersionLen {
		return nil, errLongVersion
	}
	return Tversion(dot), nil
}

func parseRversion(dot msg, _ *bufio.Reader) (Msg, error) {
	_, err := parseTversion(dot, nil)
	if err != nil {
		return nil, err
	}
	return Rversion(dot), nil
}

func parseTauth(dot msg, _ *bufio.Reader) (Msg, error) {
	if err := parseTauthBody(dot.Body()); err != nil {
		return nil, err
	}
	return Tauth(dot), nil
}

func parseTauthBody(body []byte) error {
	if uname, rest, err := verifyField(body[4:], false, 2); err != nil {
		return err
	} else if err := verifyString(uname); err != nil {
		return err
	} else if len(uname) > MaxUidLen {
		return errLongUsername
	} else if aname, _, err := verifyField(rest, true, 0); err != nil {
		return err
	} else if err := verifyString(aname); err != nil {
		return err
	} else if len(aname) > MaxAttachLen {
		return errLongAname
	}
	return nil
}

func parseRauth(dot msg, _ *bufio.Reader) (Msg, error) {
	if err := verifyQid(dot.Body()); err != nil {
		return nil, err
	}
	return Rauth(dot), nil
}

func parseTattach(dot msg, _ *bufio.Reader) (Msg, error) {
	if err := parseTauthBody(dot.Body()[4:]); err != nil {
		return nil, err
	}
	return Tattach(dot), nil
}

func parseRattach(dot msg, _ *bufio.Reader) (Msg, error) {
	_, err := parseRauth(dot, nil)
	if err != nil {
		return nil, err
	}
	return Rattach(dot), nil
}

func parseRerror(dot msg, _ *bufio.Reader) (Msg, error) {
	if str, _, err := verifyField(dot.Body(), true, 0); err != nil {
		return nil, err
	} else if err := verifyString(str); err != nil {
		return nil, err
	} else if len(str) > MaxErrorLen {
		return nil, errLongError
	}
	return Rerror(dot), nil
}

func parseTflush(dot msg, _ *bufio.Reader) (Msg, error) {
	return Tflush(dot), nil
}

func parseRflush(dot msg, _ *bufio.Reader) (Msg, error) {
	return Rflush(dot), nil
}

func parseTwalk(dot msg, _ *bufio.Reader) (Msg, error) {
	// size[4] Twalk tag[2] fid[4] newfid[4] nwname[2] nwname*(wname[s])
	var (
		err       error
		el, elems []byte // first, rest in *wname
	)
	nwelem := guint16(dot.Body()[8:])
	if nwelem > MaxWElem {
		return nil, errMaxWElem
	}
	if dot.Len() < int64(nwelem)*2 {
		return nil, errOverSize
	}
	elems = dot.Body()[10:]
	for i := uint16(0); i < nwelem; i++ {
		last := (i == nwelem-1)
		el, elems, err = verifyField(elems, last, (int(nwelem)-1-int(i))*2)
		if err != nil {
			return nil, err
		} else if err := verifyString(el); err != nil {
			return nil, err
		} else if len(el) > MaxFilenameLen {
			return nil, errLongFilename
		}
	}
	return Twalk(dot), nil
}

func parseRwalk(dot msg, _ *bufio.Reader) (Msg, error) {
	nwqid := guint16(dot.Body()[:2])
	if nwqid > MaxWElem {
		return nil, errMaxWElem
	}

	if sz, real := dot.Len()-5, int64(nwqid)*13; real < sz {
		return nil, errUnderSize
	} else if real > sz {
		return nil, errOverSize
	}

	for i := uint16(0); i < nwqid; i++ {
		if err := verifyQid(dot.Body()[2+i*13 : 2+(i+1)*13]); err != nil {
			return nil, err
		}
	}
	return Rwalk(dot), nil
}

func parseTopen(dot msg, _ *bufio.Reader) (Msg, error) {
	return Topen(dot), nil
}

func parseRopen(dot msg, _ *bufio.Reader) (Msg, error) {
	if err := verifyQid(dot.Body()[:13]); err != nil {
		return nil, err
	}
	return Ropen(dot), nil
}

func parseTcreate(dot msg, _ *bufio.Reader) (Msg, error) {
	if name, _, err := verifyField(dot.Body()[4:], true, 5); err != nil {
		return nil, err
	} else if err := verifyString(name); err != nil {
		return nil, err
	} else if len(name) > MaxFilenameLen {
		return nil, errLongFilename
	}
	return Tcreate(dot), nil
}

func parseRcreate(dot msg, _ *bufio.Reader) (Msg, error) {
	_, err := parseRopen(dot, nil)
	if err != nil {
		return nil, err
	}
	return Rcreate(dot), nil
}

func parseTread(dot msg, _ *bufio.Reader) (Msg, error) {
	// size[4] Tread tag[2] fid[4] offset[8] count[4]
	return Tread(dot), nil
}

func parseRread(dot msg, r *bufio.Reader) (Msg, error) {
	// size[4] Rread tag[2] count[4] data[count]
	count := int64(guint32(dot.Body()[:4]))
	msgSize := dot.Len() + 4

	realSize := count + 11
	if realSize < msgSize {
		return nil, errUnderSize
	} else if realSize > msgSize {
		return nil, errOverSize
	}

	if int64(len(dot)) == msgSize {
		return Rread{
			ReadCloser: closer{bytes.NewReader(dot[11:])},
			msg:        dot,
		}, nil
	}
	return Rread{
		ReadCloser: closer{io.LimitReader(r, count)},
		msg:        dot,
	}, nil
}

func parseTwrite(dot msg, input *bufio.Reader) (Msg, error) {
	// size[4] Twrite tag[2] fid[4] offset[8] count[4]  data[count]
	offset := guint64(dot.Body()[4:12])
	if offset > MaxOffset {
		return nil, errMaxOffset
	}

	count := int64(guint32(dot.Body()[12:16]))
	msgSize := dot.Len() + 4

	realSize := count + 23
	if realSize < msgSize {
		return nil, errUnderSize
	}
	if realSize > msgSize {
		return nil, errOverSize
	}

	if int64(len(dot)) == msgSize {
		return Twrite{
			ReadCloser: closer{bytes.NewReader(dot[23:])},
			msg:        dot,
		}, nil
	}
	return Twrite{
		ReadCloser: closer{io.LimitReader(input, count)},
		msg:        dot,
	}, nil
}

func parseRwrite(dot msg, _ *bufio.Reader) (Msg, error) {
	return Rwrite(dot), nil
}

func parseTclunk(dot msg, _ *bufio.Reader) (Msg, error) {
	return Tclunk(dot), nil
}

func parseRclunk(dot msg, _ *bufio.Reader) (Msg, error) {
	return Rclunk(dot), nil
}

func parseTremove(dot msg, _ *bufio.Reader) (Msg, error) {
	return Tremove(dot), nil
}

func parseRremove(dot msg, _ *bufio.Reader) (Msg, error) {
	return Rremove(dot), nil
}

func parseTstat(dot msg, _ *bufio.Reader) (Msg, error) {
	return Tstat(dot), nil
}

func parseRstat(dot msg, _ *bufio.Reader) (Msg, error) {
	stat, _, err := verifyField(dot.Body(), true, 0)
	if err != nil {
		return nil, err
	}
	if err := verifyStat(stat); err != nil {
		return nil, err
	}
	return Rstat(dot), nil
}

func parseTwstat(dot msg, _ *bufio.Reader) (Msg, error) {
	stat, _, err := verifyField(dot.Body()[4:], true, 0)
	if err != nil {
		return nil, err
	}
	if err := verifyStat(stat); err != nil {
		return nil, err
	}
	return Twstat(dot), nil
}

func parseRwstat(dot msg, _ *bufio.Reader) (Msg, error) {
	return Rwstat(dot), nil
}
