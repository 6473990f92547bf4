// Package tuya drives Tuya Wi-Fi devices over their local LAN protocol
// (versions 3.1 and 3.3) and provides the event handler that switches them
// from translated Lutron events.
package tuya

import (
	"bytes"
	"crypto/aes"
	"crypto/md5" //nolint:gosec // required by protocol 3.1 signing
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
)

// Frame constants.
const (
	framePrefix uint32 = 0x000055AA
	frameSuffix uint32 = 0x0000AA99

	// headerSize is prefix + sequence + command + length.
	headerSize = 16

	// trailerSize is crc + suffix.
	trailerSize = 8

	// maxFrameSize bounds the declared payload length of a received frame.
	maxFrameSize = 4096
)

// Command codes used by this package.
const (
	CmdControl uint32 = 7
	CmdStatus  uint32 = 8
	CmdQuery   uint32 = 10
)

// Protocol versions.
const (
	Version31 = "3.1"
	Version33 = "3.3"
)

// version33Header follows the version tag in 3.3 control payloads.
var version33Header = make([]byte, 12)

// Message is one decoded frame.
type Message struct {
	Seq        uint32
	Cmd        uint32
	ReturnCode uint32
	HasCode    bool
	Payload    []byte
}

// EncodeFrame wraps payload in a frame with CRC and suffix.
func EncodeFrame(seq, cmd uint32, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload)+trailerSize)
	binary.BigEndian.PutUint32(buf[0:4], framePrefix)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], cmd)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload)+trailerSize))
	copy(buf[headerSize:], payload)

	crcAt := headerSize + len(payload)
	binary.BigEndian.PutUint32(buf[crcAt:crcAt+4], crc32.ChecksumIEEE(buf[:crcAt]))
	binary.BigEndian.PutUint32(buf[crcAt+4:], frameSuffix)
	return buf
}

// frameLength returns the total frame size declared by a 16-byte header.
func frameLength(header []byte) (int, error) {
	if len(header) < headerSize {
		return 0, fmt.Errorf("%w: short header", ErrInvalidFrame)
	}
	if binary.BigEndian.Uint32(header[0:4]) != framePrefix {
		return 0, fmt.Errorf("%w: bad prefix %x", ErrInvalidFrame, header[0:4])
	}
	n := binary.BigEndian.Uint32(header[12:16])
	if n < trailerSize || n > maxFrameSize {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidFrame, n)
	}
	return headerSize + int(n), nil
}

// DecodeFrame parses a complete device frame. Frames sent by devices carry a
// 4-byte return code ahead of the payload.
func DecodeFrame(frame []byte) (Message, error) {
	total, err := frameLength(frame)
	if err != nil {
		return Message{}, err
	}
	if len(frame) != total {
		return Message{}, fmt.Errorf("%w: have %d bytes, header says %d", ErrInvalidFrame, len(frame), total)
	}

	crcAt := total - trailerSize
	if binary.BigEndian.Uint32(frame[crcAt+4:]) != frameSuffix {
		return Message{}, fmt.Errorf("%w: bad suffix", ErrInvalidFrame)
	}
	if want, got := binary.BigEndian.Uint32(frame[crcAt:crcAt+4]), crc32.ChecksumIEEE(frame[:crcAt]); want != got {
		return Message{}, fmt.Errorf("%w: crc %08x, computed %08x", ErrInvalidFrame, want, got)
	}

	msg := Message{
		Seq: binary.BigEndian.Uint32(frame[4:8]),
		Cmd: binary.BigEndian.Uint32(frame[8:12]),
	}
	body := frame[headerSize:crcAt]
	if len(body) >= 4 {
		msg.ReturnCode = binary.BigEndian.Uint32(body[0:4])
		msg.HasCode = true
		body = body[4:]
	}
	msg.Payload = body
	return msg, nil
}

// encodeControlPayload encrypts a JSON control document for version.
func encodeControlPayload(version string, key, doc []byte) ([]byte, error) {
	enc, err := encryptECB(key, doc)
	if err != nil {
		return nil, err
	}

	switch version {
	case Version33:
		out := make([]byte, 0, len(Version33)+len(version33Header)+len(enc))
		out = append(out, Version33...)
		out = append(out, version33Header...)
		return append(out, enc...), nil
	case Version31:
		b64 := base64.StdEncoding.EncodeToString(enc)
		sum := md5.Sum([]byte("data=" + b64 + "||lpv=" + Version31 + "||" + string(key))) //nolint:gosec // protocol 3.1
		sig := hex.EncodeToString(sum[:])[8:24]
		return []byte(Version31 + sig + b64), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}
}

// decodePayload reverses the version framing and decrypts. Plain JSON
// payloads are returned as-is.
func decodePayload(version string, key, payload []byte) ([]byte, error) {
	if len(payload) == 0 || payload[0] == '{' {
		return payload, nil
	}

	switch version {
	case Version33:
		if bytes.HasPrefix(payload, []byte(Version33)) {
			if len(payload) < len(Version33)+len(version33Header) {
				return nil, fmt.Errorf("%w: truncated 3.3 header", ErrInvalidFrame)
			}
			payload = payload[len(Version33)+len(version33Header):]
		}
		return decryptECB(key, payload)
	case Version31:
		if bytes.HasPrefix(payload, []byte(Version31)) {
			if len(payload) < len(Version31)+16 {
				return nil, fmt.Errorf("%w: truncated 3.1 signature", ErrInvalidFrame)
			}
			payload = payload[len(Version31)+16:]
		}
		raw, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
		return decryptECB(key, raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}
}

func encryptECB(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	bs := block.BlockSize()
	pad := bs - len(plain)%bs
	data := append(append([]byte(nil), plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Encrypt(out[i:i+bs], data[i:i+bs])
	}
	return out, nil
}

func decryptECB(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	bs := block.BlockSize()
	if len(data) == 0 || len(data)%bs != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrInvalidFrame, len(data))
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Decrypt(out[i:i+bs], data[i:i+bs])
	}

	pad := int(out[len(out)-1])
	if pad == 0 || pad > bs || pad > len(out) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidFrame)
	}
	return out[:len(out)-pad], nil
}
