package id

import (
	"errors"
	"net"
	"sync/atomic"
	"time"
)

// Id is a flake-style identifier used for tasks and generated agent ids.
//
// binary format: [ [ 48 bits time ] [ 48 bits machineID ] [ 32 bits counter ] ]
//
// Ids are sortable within each machine. The text form is a 26 character
// modified base32 encoding (borrowed from oklog/ulid).
type Id [16]byte

// EncodedSize is the length of a text encoded Id.
const EncodedSize = 26

var (
	machineID uint64
	counter   uint32
)

// SetMachineID may only be called by one thread before any id generation is
// done. It must be set if multiple workers are generating ids in order to
// avoid collisions. Only the least significant 48 bits are used.
func SetMachineID(id uint64) {
	machineID = id
}

// SetMachineIDHost seeds the machine id from an ipv4 address and port.
func SetMachineIDHost(addr net.IP, port uint16) {
	addr = addr.To4()
	if addr == nil {
		return
	}
	var mid uint64 // 48 bits
	mid |= uint64(addr[0]) << 40
	mid |= uint64(addr[1]) << 32
	mid |= uint64(addr[2]) << 24
	mid |= uint64(addr[3]) << 16
	mid |= uint64(port)
	SetMachineID(mid)
}

// New generates a new Id. New is safe to call from concurrent goroutines.
// 2^32 calls to New per millisecond will be unique, provided machine id is
// seeded correctly across machines.
func New() Id {
	return NewWithTime(time.Now())
}

// NewWithTime returns an id that uses the milliseconds from the given time.
func NewWithTime(t time.Time) Id {
	ms := uint64(t.Unix())*1000 + uint64(t.Nanosecond()/int(time.Millisecond))
	count := atomic.AddUint32(&counter, 1)

	var id Id

	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)

	id[6] = byte(machineID >> 40)
	id[7] = byte(machineID >> 32)
	id[8] = byte(machineID >> 24)
	id[9] = byte(machineID >> 16)
	id[10] = byte(machineID >> 8)
	id[11] = byte(machineID)

	id[12] = byte(count >> 24)
	id[13] = byte(count >> 16)
	id[14] = byte(count >> 8)
	id[15] = byte(count)

	return id
}

// encoding alphabet, no i, l, o or u (easier to read out loud)
const encoding = "0123456789abcdefghjkmnpqrstvwxyz"

// dec is the reverse of encoding, 0xFF marks an invalid character.
var dec = func() [256]byte {
	var d [256]byte
	for i := range d {
		d[i] = 0xFF
	}
	for i := 0; i < len(encoding); i++ {
		d[encoding[i]] = byte(i)
	}
	return d
}()

// ErrBufferSize is returned when a buffer of the wrong size is supplied.
var ErrBufferSize = errors.New("bad buffer size when marshaling")

// ErrInvalidChar is returned when an encoded id contains a character outside
// of the encoding alphabet.
var ErrInvalidChar = errors.New("invalid character in encoded id")

// String returns a lexicographically sortable text encoded Id,
// e.g. 01an4z07by79ka1307sr9x4mv3
func (id Id) String() string {
	var b [EncodedSize]byte
	_ = id.MarshalTextTo(b[:])
	return string(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Id) MarshalText() ([]byte, error) {
	var b [EncodedSize]byte
	return b[:], id.MarshalTextTo(b[:])
}

// MarshalTextTo writes the text encoding of the Id to the given buffer,
// len(dst) must be EncodedSize.
func (id Id) MarshalTextTo(dst []byte) error {
	if len(dst) != EncodedSize {
		return ErrBufferSize
	}

	// 10 byte timestamp+machine prefix, optimized unrolled base32, see
	// oklog/ulid for provenance.
	dst[0] = encoding[(id[0]&224)>>5]
	dst[1] = encoding[id[0]&31]
	dst[2] = encoding[(id[1]&248)>>3]
	dst[3] = encoding[((id[1]&7)<<2)|((id[2]&192)>>6)]
	dst[4] = encoding[(id[2]&62)>>1]
	dst[5] = encoding[((id[2]&1)<<4)|((id[3]&240)>>4)]
	dst[6] = encoding[((id[3]&15)<<1)|((id[4]&128)>>7)]
	dst[7] = encoding[(id[4]&124)>>2]
	dst[8] = encoding[((id[4]&3)<<3)|((id[5]&224)>>5)]
	dst[9] = encoding[id[5]&31]
	dst[10] = encoding[(id[6]&248)>>3]
	dst[11] = encoding[((id[6]&7)<<2)|((id[7]&192)>>6)]
	dst[12] = encoding[(id[7]&62)>>1]
	dst[13] = encoding[((id[7]&1)<<4)|((id[8]&240)>>4)]
	dst[14] = encoding[((id[8]&15)<<1)|((id[9]&128)>>7)]
	dst[15] = encoding[(id[9]&124)>>2]
	dst[16] = encoding[((id[9]&3)<<3)|((id[10]&224)>>5)]
	dst[17] = encoding[id[10]&31]
	dst[18] = encoding[(id[11]&248)>>3]
	dst[19] = encoding[((id[11]&7)<<2)|((id[12]&192)>>6)]
	dst[20] = encoding[(id[12]&62)>>1]
	dst[21] = encoding[((id[12]&1)<<4)|((id[13]&240)>>4)]
	dst[22] = encoding[((id[13]&15)<<1)|((id[14]&128)>>7)]
	dst[23] = encoding[(id[14]&124)>>2]
	dst[24] = encoding[((id[14]&3)<<3)|((id[15]&224)>>5)]
	dst[25] = encoding[id[15]&31]
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Id) UnmarshalText(v []byte) error {
	if len(v) != EncodedSize {
		return ErrBufferSize
	}
	for _, c := range v {
		if dec[c] == 0xFF {
			return ErrInvalidChar
		}
	}

	id[0] = (dec[v[0]] << 5) | dec[v[1]]
	id[1] = (dec[v[2]] << 3) | (dec[v[3]] >> 2)
	id[2] = (dec[v[3]] << 6) | (dec[v[4]] << 1) | (dec[v[5]] >> 4)
	id[3] = (dec[v[5]] << 4) | (dec[v[6]] >> 1)
	id[4] = (dec[v[6]] << 7) | (dec[v[7]] << 2) | (dec[v[8]] >> 3)
	id[5] = (dec[v[8]] << 5) | dec[v[9]]
	id[6] = (dec[v[10]] << 3) | (dec[v[11]] >> 2)
	id[7] = (dec[v[11]] << 6) | (dec[v[12]] << 1) | (dec[v[13]] >> 4)
	id[8] = (dec[v[13]] << 4) | (dec[v[14]] >> 1)
	id[9] = (dec[v[14]] << 7) | (dec[v[15]] << 2) | (dec[v[16]] >> 3)
	id[10] = (dec[v[16]] << 5) | dec[v[17]]
	id[11] = (dec[v[18]] << 3) | (dec[v[19]] >> 2)
	id[12] = (dec[v[19]] << 6) | (dec[v[20]] << 1) | (dec[v[21]] >> 4)
	id[13] = (dec[v[21]] << 4) | (dec[v[22]] >> 1)
	id[14] = (dec[v[22]] << 7) | (dec[v[23]] << 2) | (dec[v[24]] >> 3)
	id[15] = (dec[v[24]] << 5) | dec[v[25]]
	return nil
}
