// Package wire implements the length-field-prefixed binary frame format
// described in spec §6: a fixed header (correlation id, priority, request
// name length) followed by the request/response body bytes, extended
// with the correlation id and priority fields needed for response
// demultiplexing above plain shard-routing.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
)

// Frame header layout, all integers big-endian:
//
//	16 bytes  correlation id (UUID)
//	 4 bytes  priority (int32, default 0, higher served first)
//	 2 bytes  request name length (uint16, 0 if absent)
//	 N bytes  request name (UTF-8, only if length > 0)
//	 4 bytes  body length (uint32)
//	 M bytes  body
const headerPrefixLen = 16 + 4 + 2

// Frame is one wire message: a request or a response, demultiplexed by
// CorrelationID.
type Frame struct {
	CorrelationID uuid.UUID
	Priority      int32
	RequestName   string
	Body          []byte
}

// WriteTo writes f to conn as a single length-prefixed frame. Uses
// net.Buffers to avoid a concatenation allocation for the common case of
// header + name + body.
func WriteTo(conn net.Conn, f Frame) error {
	nameBytes := []byte(f.RequestName)
	if len(nameBytes) > 0xFFFF {
		return fmt.Errorf("wire: request name too long (%d bytes)", len(nameBytes))
	}

	header := make([]byte, headerPrefixLen)
	copy(header[0:16], f.CorrelationID[:])
	binary.BigEndian.PutUint32(header[16:20], uint32(f.Priority))
	binary.BigEndian.PutUint16(header[20:22], uint16(len(nameBytes)))

	bodyLen := make([]byte, 4)
	binary.BigEndian.PutUint32(bodyLen, uint32(len(f.Body)))

	buffers := net.Buffers{header}
	if len(nameBytes) > 0 {
		buffers = append(buffers, nameBytes)
	}
	buffers = append(buffers, bodyLen)
	if len(f.Body) > 0 {
		buffers = append(buffers, f.Body)
	}

	_, err := buffers.WriteTo(conn)
	return err
}

// ReadFrom reads one frame from conn, blocking until a full frame is
// available or an error (including deadline expiry set by the caller)
// occurs.
func ReadFrom(conn net.Conn) (Frame, error) {
	var f Frame

	header := make([]byte, headerPrefixLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return f, err
	}

	copy(f.CorrelationID[:], header[0:16])
	f.Priority = int32(binary.BigEndian.Uint32(header[16:20]))
	nameLen := binary.BigEndian.Uint16(header[20:22])

	if nameLen > 0 {
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(conn, nameBuf); err != nil {
			return f, err
		}
		f.RequestName = string(nameBuf)
	}

	bodyLenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, bodyLenBuf); err != nil {
		return f, err
	}
	bodyLen := binary.BigEndian.Uint32(bodyLenBuf)

	if bodyLen > 0 {
		f.Body = make([]byte, bodyLen)
		if _, err := io.ReadFull(conn, f.Body); err != nil {
			return f, err
		}
	}

	return f, nil
}
