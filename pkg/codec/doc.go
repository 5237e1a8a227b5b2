// Package codec provides record framing for bagvrs stream containers.
//
// Every piece of data in a container body (stream declarations,
// configuration blobs, data payloads) and every stream index entry in the
// footer is stored as one self-checking record.
//
// # Record Format
//
//	[CRC32(4)][Type(1)][Stream(4)][Timestamp(8)][Size(4)][Payload]
//
// Fields:
//   - CRC32: IEEE checksum over every field that follows it (little-endian)
//   - Type: record kind (declare, configuration, data, index)
//   - Stream: packed physical stream id, TypeID<<16 | Instance (little-endian)
//   - Timestamp: IEEE-754 float64 seconds (little-endian bit pattern)
//   - Size: payload length in bytes (little-endian)
//   - Payload: Size bytes of record-specific data
//
// The total record size is 21 bytes of header plus the payload length.
//
// # Usage
//
//	c := codec.NewRecordCodec()
//
//	encoded, err := c.Encode(codec.RecordData, stream, 1.25, payload)
//	if err != nil {
//	    return err
//	}
//
//	rec, err := c.Decode(encoded)
//	if err != nil {
//	    return err
//	}
//	if err := rec.Validate(); err != nil {
//	    return err // corrupted
//	}
//
// ReadRecord is the streaming form used by container readers: it reads one
// record from an io.Reader, validates it and distinguishes a clean end of
// input (io.EOF) from a truncated record (ErrShortRecord).
//
// RecordCodec instances are stateless and safe for concurrent use.
package codec
