package protocol

import (
	"encoding/binary"
	"math"
	"unicode"
)

// ValidateName checks the registration name rules: non-empty, at most 254
// bytes (a terminator is added on the wire) and alphanumeric code points
// only.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) >= NameSize {
		return ErrInvalidName
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ErrInvalidName
		}
	}
	return nil
}

// RegisterRequest is a 600 registration request. The identity field is
// transmitted as zeros; the server assigns one in the 2100 reply.
type RegisterRequest struct {
	Name      string
	PublicKey [PublicKeySize]byte
}

// Encode encodes the complete request packet
func (r *RegisterRequest) Encode() ([]byte, error) {
	if err := ValidateName(r.Name); err != nil {
		return nil, err
	}

	header := RequestHeader{
		Version:     Version,
		Code:        CodeRegister,
		PayloadSize: NameSize + PublicKeySize,
	}

	buf := make([]byte, RequestHeaderSize+NameSize+PublicKeySize)
	copy(buf, header.Encode())
	copy(buf[RequestHeaderSize:], r.Name) // zero padding terminates the name
	copy(buf[RequestHeaderSize+NameSize:], r.PublicKey[:])

	return buf, nil
}

// ClientsListRequest is a 601 request with an empty payload
type ClientsListRequest struct {
	From Ident
}

// Encode encodes the complete request packet
func (r *ClientsListRequest) Encode() []byte {
	header := RequestHeader{
		Ident:   r.From,
		Version: Version,
		Code:    CodeClientsList,
	}
	return header.Encode()
}

// PublicKeyRequest is a 602 request for another client's public key
type PublicKeyRequest struct {
	From   Ident
	Target Ident
}

// Encode encodes the complete request packet
func (r *PublicKeyRequest) Encode() []byte {
	header := RequestHeader{
		Ident:       r.From,
		Version:     Version,
		Code:        CodePublicKey,
		PayloadSize: IdentSize,
	}

	buf := make([]byte, RequestHeaderSize+IdentSize)
	copy(buf, header.Encode())
	copy(buf[RequestHeaderSize:], r.Target[:])

	return buf
}

// SendMessageRequest is a 603 request carrying one client-to-client
// message. Content is already encrypted (or empty for key requests).
type SendMessageRequest struct {
	From    Ident
	Dest    Ident
	Type    uint8
	Content []byte
}

// Encode encodes the complete request packet
func (r *SendMessageRequest) Encode() ([]byte, error) {
	if uint64(len(r.Content)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}
	contentSize := uint32(len(r.Content))

	header := RequestHeader{
		Ident:       r.From,
		Version:     Version,
		Code:        CodeSendMessage,
		PayloadSize: IdentSize + 1 + 4 + contentSize,
	}

	buf := make([]byte, RequestHeaderSize+IdentSize+1+4+len(r.Content))
	copy(buf, header.Encode())
	off := RequestHeaderSize
	copy(buf[off:], r.Dest[:])
	off += IdentSize
	buf[off] = r.Type
	off++
	binary.LittleEndian.PutUint32(buf[off:], contentSize)
	off += 4
	copy(buf[off:], r.Content)

	return buf, nil
}

// PendingRequest is a 604 request with an empty payload
type PendingRequest struct {
	From Ident
}

// Encode encodes the complete request packet
func (r *PendingRequest) Encode() []byte {
	header := RequestHeader{
		Ident:   r.From,
		Version: Version,
		Code:    CodePendingMsgs,
	}
	return header.Encode()
}
