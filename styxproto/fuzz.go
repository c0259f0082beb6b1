//+build gofuzz

package styxproto

import (
	"bytes"
)

// Automated fuzz testing

func Fuzz(data []byte) int {
	d := NewDecoder(bytes.NewReader(data))
	for d.Next() {
		if d.Msg() == nil {
			panic("d.Next returned true with a nil message")
		}
		return 1
	}
	return 0
}
