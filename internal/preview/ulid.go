package preview

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Session ids are ULIDs: 26-character Crockford Base32 strings with a
// millisecond timestamp prefix, generated locally without a dependency.

var (
	ulidMu  sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewID returns a fresh session id, monotonic within a millisecond.
func NewID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	ts := uint64(time.Now().UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}

	var b [16]byte
	// 48-bit big-endian timestamp in the first 6 bytes.
	b[0] = byte(ts >> 40)
	b[1] = byte(ts >> 32)
	b[2] = byte(ts >> 24)
	b[3] = byte(ts >> 16)
	b[4] = byte(ts >> 8)
	b[5] = byte(ts)
	rand.Read(b[6:])
	// Sequence in bytes 6-7 keeps ids unique within the same millisecond.
	binary.BigEndian.PutUint16(b[6:8], lastSeq)

	return encodeCrockford(b)
}

// encodeCrockford encodes 128 bits as 26 base32 characters. The first
// character carries only the top 3 bits, every following one 5 bits.
func encodeCrockford(b [16]byte) string {
	var out [26]byte
	bitPos := -2 // 26*5 = 130 bits; start 2 bits before the data
	for i := range out {
		var v byte
		for j := 0; j < 5; j++ {
			v <<= 1
			pos := bitPos + j
			if pos >= 0 && pos < 128 {
				if b[pos/8]&(1<<(7-pos%8)) != 0 {
					v |= 1
				}
			}
		}
		out[i] = crockford[v]
		bitPos += 5
	}
	return string(out[:])
}
