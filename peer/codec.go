package peer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/veriumnet/meshhost/hosterrors"
)

// PersistVersion is the only version this codec writes or accepts. The
// pre-version legacy layout the original implementation could fall back
// to is treated as best-effort and is not read here; see DESIGN.md.
const PersistVersion = 0

// SaveWindow is how recently a peer must have connected to be worth
// persisting.
const SaveWindow = 48 * time.Hour

// Record is one persisted peer entry.
type Record struct {
	IP             net.IP
	TCPPort        uint16
	NodeID         ID
	Trusted        bool
	LastConnected  time.Time
	LastAttempted  time.Time
	FailedAttempts int
	LastDisconnect DisconnectReason
	Score          int64
	Rating         int64
}

// ShouldSave applies the four selection rules: recently connected,
// sane TCP port, not ourselves, and a non-private endpoint.
func ShouldSave(n Node, s Stats, selfID ID, now time.Time, isPrivate func(net.IP) bool) bool {
	if now.Sub(s.LastConnected) >= SaveWindow {
		return false
	}
	if n.TCP.Port == 0 || n.TCP.Port >= 32768 {
		return false
	}
	if n.ID == selfID {
		return false
	}
	if isPrivate(n.TCP.IP) {
		return false
	}
	return true
}

// Encode serializes secret and records into the persisted peer-list
// format.
func Encode(secret [32]byte, records []Record) []byte {
	var buf bytes.Buffer
	buf.WriteByte(PersistVersion)
	buf.Write(secret[:])
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(records)))
	buf.Write(countBuf[:])
	for _, r := range records {
		rec := encodeRecord(r)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		buf.Write(lenBuf[:])
		buf.Write(rec)
	}
	return buf.Bytes()
}

func encodeRecord(r Record) []byte {
	var buf bytes.Buffer
	ip4 := r.IP.To4()
	if ip4 != nil {
		buf.WriteByte(4)
		buf.Write(ip4)
	} else {
		ip16 := r.IP.To16()
		buf.WriteByte(16)
		buf.Write(ip16)
	}
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], r.TCPPort)
	buf.Write(u16[:])
	buf.Write(r.NodeID[:])
	if r.Trusted {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], uint64(r.LastConnected.Unix()))
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], uint64(r.LastAttempted.Unix()))
	buf.Write(u64[:])
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(r.FailedAttempts))
	buf.Write(u32[:])
	buf.WriteByte(byte(r.LastDisconnect))
	binary.BigEndian.PutUint64(u64[:], uint64(r.Score))
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], uint64(r.Rating))
	buf.Write(u64[:])
	return buf.Bytes()
}

// Decode parses data written by Encode. Malformed entries are skipped
// rather than failing the whole decode; a malformed header is fatal.
func Decode(data []byte) (secret [32]byte, records []Record, err error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return secret, nil, hosterrors.New(hosterrors.CorruptPersistence, "peer.Decode", err)
	}
	if version != PersistVersion {
		return secret, nil, hosterrors.New(hosterrors.CorruptPersistence, "peer.Decode",
			fmt.Errorf("unsupported persist version %d", version))
	}
	if _, err := io.ReadFull(r, secret[:]); err != nil {
		return secret, nil, hosterrors.New(hosterrors.CorruptPersistence, "peer.Decode", err)
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return secret, nil, hosterrors.New(hosterrors.CorruptPersistence, "peer.Decode", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	records = make([]Record, 0, count)
	for i := uint32(0); i < count; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			break
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		rec := make([]byte, n)
		if _, err := io.ReadFull(r, rec); err != nil {
			break
		}
		if decoded, ok := decodeRecord(rec); ok {
			records = append(records, decoded)
		}
	}
	return secret, records, nil
}

func decodeRecord(rec []byte) (Record, bool) {
	r := bytes.NewReader(rec)
	ipLen, err := r.ReadByte()
	if err != nil || (ipLen != 4 && ipLen != 16) {
		return Record{}, false
	}
	ip := make([]byte, ipLen)
	if _, err := io.ReadFull(r, ip); err != nil {
		return Record{}, false
	}
	var u16 [2]byte
	if _, err := io.ReadFull(r, u16[:]); err != nil {
		return Record{}, false
	}
	var out Record
	out.IP = net.IP(ip)
	out.TCPPort = binary.BigEndian.Uint16(u16[:])
	if _, err := io.ReadFull(r, out.NodeID[:]); err != nil {
		return Record{}, false
	}
	trust, err := r.ReadByte()
	if err != nil {
		return Record{}, false
	}
	out.Trusted = trust != 0
	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return Record{}, false
	}
	out.LastConnected = time.Unix(int64(binary.BigEndian.Uint64(u64[:])), 0)
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return Record{}, false
	}
	out.LastAttempted = time.Unix(int64(binary.BigEndian.Uint64(u64[:])), 0)
	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return Record{}, false
	}
	out.FailedAttempts = int(binary.BigEndian.Uint32(u32[:]))
	disc, err := r.ReadByte()
	if err != nil {
		return Record{}, false
	}
	out.LastDisconnect = DisconnectReason(disc)
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return Record{}, false
	}
	out.Score = int64(binary.BigEndian.Uint64(u64[:]))
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return Record{}, false
	}
	out.Rating = int64(binary.BigEndian.Uint64(u64[:]))
	return out, true
}
