package protocol

import (
	"bytes"
	"encoding/binary"
)

// ExactReader reads exactly len(buf) bytes or fails. The transport
// connection satisfies this; reassembly over partial reads happens there.
type ExactReader interface {
	RecvExact(buf []byte) error
}

// ReadResponse reads one complete response from the transport: the 7-byte
// header first, then exactly PayloadSize bytes of body. The header is
// validated against the expected code before the body is read, so a bad
// size field surfaces as a framing error rather than a stalled read.
func ReadResponse(r ExactReader, expected uint16) (ResponseHeader, []byte, error) {
	var header ResponseHeader

	buf := make([]byte, ResponseHeaderSize)
	if err := r.RecvExact(buf); err != nil {
		return header, nil, err
	}
	if err := header.Decode(buf); err != nil {
		return header, nil, err
	}
	if err := header.Validate(expected); err != nil {
		return header, nil, err
	}

	if header.PayloadSize == 0 {
		return header, nil, nil
	}

	payload := make([]byte, header.PayloadSize)
	if err := r.RecvExact(payload); err != nil {
		return header, nil, ErrTruncatedPayload
	}

	return header, payload, nil
}

// RegisteredResponse is the 2100 payload
type RegisteredResponse struct {
	ID Ident
}

// Decode decodes the payload
func (r *RegisteredResponse) Decode(payload []byte) error {
	if len(payload) != IdentSize {
		return ErrWrongPayloadSize
	}
	copy(r.ID[:], payload)
	return nil
}

// UserRecord is one entry of a 2101 users payload
type UserRecord struct {
	ID   Ident
	Name string
}

// DecodeUsers decodes a 2101 payload into its records. An empty payload
// yields an empty list.
func DecodeUsers(payload []byte) ([]UserRecord, error) {
	if len(payload)%UserRecordSize != 0 {
		return nil, ErrRecordBoundary
	}

	users := make([]UserRecord, 0, len(payload)/UserRecordSize)
	for off := 0; off < len(payload); off += UserRecordSize {
		var rec UserRecord
		copy(rec.ID[:], payload[off:off+IdentSize])
		rec.Name = decodeName(payload[off+IdentSize : off+UserRecordSize])
		users = append(users, rec)
	}

	return users, nil
}

// PublicKeyResponse is the 2102 payload
type PublicKeyResponse struct {
	ID        Ident
	PublicKey [PublicKeySize]byte
}

// Decode decodes the payload
func (r *PublicKeyResponse) Decode(payload []byte) error {
	if len(payload) != IdentSize+PublicKeySize {
		return ErrWrongPayloadSize
	}
	copy(r.ID[:], payload[:IdentSize])
	copy(r.PublicKey[:], payload[IdentSize:])
	return nil
}

// MessageSentResponse is the 2103 payload
type MessageSentResponse struct {
	Dest      Ident
	MessageID uint32
}

// Decode decodes the payload
func (r *MessageSentResponse) Decode(payload []byte) error {
	if len(payload) != IdentSize+4 {
		return ErrWrongPayloadSize
	}
	copy(r.Dest[:], payload[:IdentSize])
	r.MessageID = binary.LittleEndian.Uint32(payload[IdentSize:])
	return nil
}

// PendingMessage is one record of a 2104 payload
type PendingMessage struct {
	From      Ident
	MessageID uint32
	Type      uint8
	Content   []byte
}

// DecodePending decodes a 2104 payload record-by-record, preserving the
// server's ordering. A record whose declared content extends past the
// payload is a framing error.
func DecodePending(payload []byte) ([]PendingMessage, error) {
	var messages []PendingMessage

	off := 0
	for off < len(payload) {
		if off+PendingHeaderSize > len(payload) {
			return nil, ErrRecordBoundary
		}

		var msg PendingMessage
		copy(msg.From[:], payload[off:off+IdentSize])
		msg.MessageID = binary.LittleEndian.Uint32(payload[off+IdentSize:])
		msg.Type = payload[off+IdentSize+4]
		contentSize := binary.LittleEndian.Uint32(payload[off+IdentSize+5:])
		off += PendingHeaderSize

		if uint64(off)+uint64(contentSize) > uint64(len(payload)) {
			return nil, ErrRecordBoundary
		}

		msg.Content = make([]byte, contentSize)
		copy(msg.Content, payload[off:off+int(contentSize)])
		off += int(contentSize)

		messages = append(messages, msg)
	}

	return messages, nil
}

// decodeName trims a zero-padded null-terminated name field
func decodeName(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
