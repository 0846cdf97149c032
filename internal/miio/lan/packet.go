package lan

import (
	"bytes"
	"crypto/md5" // #nosec G501 -- the device protocol mandates md5 checksums
	"encoding/binary"
	"fmt"
)

// Port is the UDP port miio devices listen on.
const Port = 54321

// Wire framing constants.
const (
	packetMagic  = 0x2131
	headerLength = 32
)

// packet is one decoded protocol frame. The 32-byte header carries the
// magic, total length, an unused field, the device id, the device's
// uptime stamp, and an md5 checksum; the payload (when present) is
// AES-encrypted JSON.
type packet struct {
	DeviceID uint32
	Stamp    uint32
	Checksum [16]byte
	Payload  []byte
}

// helloPacket builds the handshake frame: a bare header with every field
// after the length set to 0xff. Devices answer with their id, stamp, and
// sometimes their token in the checksum field.
func helloPacket() []byte {
	frame := make([]byte, headerLength)
	binary.BigEndian.PutUint16(frame[0:2], packetMagic)
	binary.BigEndian.PutUint16(frame[2:4], headerLength)
	for i := 4; i < headerLength; i++ {
		frame[i] = 0xff
	}
	return frame
}

// encodePacket frames an encrypted payload for a device. The checksum is
// md5 over the header prefix, the token, and the payload.
func encodePacket(deviceID, stamp uint32, token, payload []byte) []byte {
	frame := make([]byte, headerLength+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], packetMagic)
	binary.BigEndian.PutUint16(frame[2:4], uint16(headerLength+len(payload)))
	binary.BigEndian.PutUint32(frame[4:8], 0)
	binary.BigEndian.PutUint32(frame[8:12], deviceID)
	binary.BigEndian.PutUint32(frame[12:16], stamp)

	sum := md5.New() // #nosec G401 -- protocol checksum, not a security boundary
	sum.Write(frame[0:16])
	sum.Write(token)
	sum.Write(payload)
	copy(frame[16:32], sum.Sum(nil))

	copy(frame[headerLength:], payload)
	return frame
}

// decodePacket parses one inbound frame.
func decodePacket(data []byte) (*packet, error) {
	if len(data) < headerLength {
		return nil, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	if binary.BigEndian.Uint16(data[0:2]) != packetMagic {
		return nil, fmt.Errorf("bad packet magic: %#x", data[0:2])
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length > len(data) {
		return nil, fmt.Errorf("truncated packet: header says %d bytes, got %d", length, len(data))
	}

	p := &packet{
		DeviceID: binary.BigEndian.Uint32(data[8:12]),
		Stamp:    binary.BigEndian.Uint32(data[12:16]),
	}
	copy(p.Checksum[:], data[16:32])
	if length > headerLength {
		p.Payload = append([]byte(nil), data[headerLength:length]...)
	}
	return p, nil
}

// verifyChecksum checks a data packet's checksum against the token.
func (p *packet) verifyChecksum(token []byte) bool {
	frame := make([]byte, 16)
	binary.BigEndian.PutUint16(frame[0:2], packetMagic)
	binary.BigEndian.PutUint16(frame[2:4], uint16(headerLength+len(p.Payload)))
	binary.BigEndian.PutUint32(frame[4:8], 0)
	binary.BigEndian.PutUint32(frame[8:12], p.DeviceID)
	binary.BigEndian.PutUint32(frame[12:16], p.Stamp)

	sum := md5.New() // #nosec G401 -- protocol checksum, not a security boundary
	sum.Write(frame)
	sum.Write(token)
	sum.Write(p.Payload)
	return bytes.Equal(sum.Sum(nil), p.Checksum[:])
}

// revealedToken extracts the device token from a handshake response.
// Devices that hide their token fill the checksum field with 0x00 or 0xff.
func (p *packet) revealedToken() ([]byte, bool) {
	if len(p.Payload) != 0 {
		return nil, false
	}
	allZero, allFF := true, true
	for _, b := range p.Checksum {
		if b != 0x00 {
			allZero = false
		}
		if b != 0xff {
			allFF = false
		}
	}
	if allZero || allFF {
		return nil, false
	}
	token := make([]byte, 16)
	copy(token, p.Checksum[:])
	return token, true
}
