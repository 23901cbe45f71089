package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	ErrMalformedHeader  = errors.New("malformed header")
	ErrUnexpectedCode   = errors.New("unexpected response code")
	ErrWrongPayloadSize = errors.New("wrong payload size")
	ErrTruncatedPayload = errors.New("truncated payload")
	ErrRecordBoundary   = errors.New("record extends beyond payload")
	ErrServerFailure    = errors.New("server-signalled failure")
	ErrInvalidName      = errors.New("invalid client name")
	ErrPayloadTooLarge  = errors.New("payload exceeds size field")
)

// RequestHeader is the fixed 23-byte prefix of every client request.
// Integers are little-endian, fields tightly packed.
type RequestHeader struct {
	Ident       Ident
	Version     uint8
	Code        uint16
	PayloadSize uint32
}

// Encode encodes the header to bytes
func (h *RequestHeader) Encode() []byte {
	buf := make([]byte, RequestHeaderSize)

	copy(buf[0:IdentSize], h.Ident[:])
	buf[IdentSize] = h.Version
	binary.LittleEndian.PutUint16(buf[IdentSize+1:], h.Code)
	binary.LittleEndian.PutUint32(buf[IdentSize+3:], h.PayloadSize)

	return buf
}

// Decode decodes the header from bytes
func (h *RequestHeader) Decode(buf []byte) error {
	if len(buf) < RequestHeaderSize {
		return ErrMalformedHeader
	}

	copy(h.Ident[:], buf[0:IdentSize])
	h.Version = buf[IdentSize]
	h.Code = binary.LittleEndian.Uint16(buf[IdentSize+1:])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[IdentSize+3:])

	return nil
}

// ResponseHeader is the fixed 7-byte prefix of every server response
type ResponseHeader struct {
	Version     uint8
	Code        uint16
	PayloadSize uint32
}

// Encode encodes the header to bytes
func (h *ResponseHeader) Encode() []byte {
	buf := make([]byte, ResponseHeaderSize)

	buf[0] = h.Version
	binary.LittleEndian.PutUint16(buf[1:], h.Code)
	binary.LittleEndian.PutUint32(buf[3:], h.PayloadSize)

	return buf
}

// Decode decodes the header from bytes
func (h *ResponseHeader) Decode(buf []byte) error {
	if len(buf) < ResponseHeaderSize {
		return ErrMalformedHeader
	}

	h.Version = buf[0]
	h.Code = binary.LittleEndian.Uint16(buf[1:])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[3:])

	return nil
}

// Validate checks the header against the expected response code. A 9000
// code maps to ErrServerFailure regardless of what was expected. For
// fixed-size responses the payload size must match exactly; a 2101 size
// must be a whole number of user records, and 2104 is validated
// record-by-record during parse.
func (h *ResponseHeader) Validate(expected uint16) error {
	if h.Code == CodeError {
		return ErrServerFailure
	}
	if h.Code != expected {
		return ErrUnexpectedCode
	}

	switch h.Code {
	case CodeRegistered:
		if h.PayloadSize != IdentSize {
			return ErrWrongPayloadSize
		}
	case CodePublicKeyReply:
		if h.PayloadSize != IdentSize+PublicKeySize {
			return ErrWrongPayloadSize
		}
	case CodeMessageSent:
		if h.PayloadSize != IdentSize+4 {
			return ErrWrongPayloadSize
		}
	case CodeUsers:
		if h.PayloadSize%UserRecordSize != 0 {
			return ErrWrongPayloadSize
		}
	}

	return nil
}
