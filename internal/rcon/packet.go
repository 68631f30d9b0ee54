package rcon

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

/*
Wire format (Source RCON, as spoken by Minecraft servers)

Every packet is little-endian:

	int32  length   bytes that follow this field (id + type + body + 2)
	int32  id       client-chosen request id, echoed in the reply
	int32  type     see the Type constants
	[]byte body     ASCII payload
	0x00 0x00       body terminator and packet pad

A failed login is reported as an auth response whose id is -1.
*/

// Packet types. ExecCommand and AuthResponse share the value 2; the
// direction of travel tells them apart.
const (
	TypeResponseValue int32 = 0
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeAuth          int32 = 3
)

const (
	headerSize = 4 + 4 // id + type
	padSize    = 2

	// MaxCommandLen is the longest body a server accepts from a client.
	MaxCommandLen = 1446
	// maxPacketLen bounds the length field of incoming packets.
	maxPacketLen = 1 << 16
)

// AuthFailedID is the request id a server returns for a rejected password.
const AuthFailedID int32 = -1

// Packet is one decoded frame.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

// Encode writes p to w as a single frame.
func Encode(w io.Writer, p Packet) error {
	n := headerSize + len(p.Body) + padSize
	buf := make([]byte, 4+n)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Body)
	// trailing two bytes are already zero
	_, err := w.Write(buf)
	return err
}

// Decode reads one frame from r.
func Decode(r *bufio.Reader) (Packet, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Packet{}, err
	}
	n := int32(binary.LittleEndian.Uint32(lenBuf[:]))
	if n < headerSize+padSize || n > maxPacketLen {
		return Packet{}, fmt.Errorf("invalid packet length %d", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, err
	}
	body := buf[headerSize : n-padSize]
	if buf[n-2] != 0 || buf[n-1] != 0 {
		return Packet{}, fmt.Errorf("packet missing terminator")
	}
	return Packet{
		ID:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Type: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Body: string(body),
	}, nil
}
