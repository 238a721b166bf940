// Package wire frames the lease records that the handle registry keeps in a
// provider.Provider.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindLease byte = 1
)

var (
	ErrCorrupt = errors.New("remoteval: corrupt lease record")
	magic4     = [...]byte{'R', 'V', 'L', 'S'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Lease names the handle a record was granted for. Realm and Handle are
// checked on read so that a record can never vouch for a different binding.
type Lease struct {
	Realm   string
	Handle  string
	Granted time.Time
}

// EncodeLease:
//
//	magic(4) | ver(1) | kind(1=lease) | granted(i64 be, unix ns)
//	realmLen(u16 be) | realm | handleLen(u16 be) | handle
func EncodeLease(l Lease) []byte {
	if len(l.Realm) > 0xFFFF || len(l.Handle) == 0 || len(l.Handle) > 0xFFFF {
		panic("remoteval: invalid lease field length")
	}
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 2 + len(l.Realm) + 2 + len(l.Handle))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindLease)

	var u8 [8]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(l.Granted.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(l.Realm)))
	buf.Write(u2[:])
	buf.WriteString(l.Realm)

	binary.BigEndian.PutUint16(u2[:], uint16(len(l.Handle)))
	buf.Write(u2[:])
	buf.WriteString(l.Handle)

	return buf.Bytes()
}

// DecodeLease is strict: bad headers, short buffers and trailing bytes are
// all ErrCorrupt.
func DecodeLease(b []byte) (Lease, error) {
	const hdr = 4 + 1 + 1 + 8
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindLease {
		return Lease{}, ErrCorrupt
	}
	off := 6

	granted := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	realm, off, err := readString(b, off)
	if err != nil {
		return Lease{}, err
	}
	handle, off, err := readString(b, off)
	if err != nil {
		return Lease{}, err
	}
	if handle == "" || off != len(b) {
		return Lease{}, ErrCorrupt
	}

	return Lease{
		Realm:   realm,
		Handle:  handle,
		Granted: time.Unix(0, granted),
	}, nil
}

func readString(b []byte, off int) (string, int, error) {
	if off+2 > len(b) {
		return "", 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n > len(b)-off { // overflow-safe bound check
		return "", 0, ErrCorrupt
	}
	return string(b[off : off+n]), off + n, nil
}
