package codec_test

import (
	"fmt"
	"log"

	"github.com/ssargent/bagvrs/pkg/codec"
)

// ExampleRecordCodec_basic demonstrates basic record encoding and decoding
func ExampleRecordCodec_basic() {
	c := codec.NewRecordCodec()

	encoded, err := c.Encode(codec.RecordData, 100<<16|1, 12.5, []byte("frame"))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Encoded %d bytes\n", len(encoded))

	record, err := c.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}
	if err := record.Validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Type: %s\n", record.Type)
	fmt.Printf("Stream: %d-%d\n", record.Stream>>16, record.Stream&0xFFFF)
	fmt.Printf("Timestamp: %.1f\n", record.Timestamp)
	fmt.Printf("Payload: %s\n", record.Payload)

	// Output:
	// Encoded 26 bytes
	// Type: data
	// Stream: 100-1
	// Timestamp: 12.5
	// Payload: frame
}

// ExampleRecordCodec_errorHandling demonstrates error handling
func ExampleRecordCodec_errorHandling() {
	c := codec.NewRecordCodec()

	_, err := c.Decode([]byte{0x01, 0x02, 0x03})
	fmt.Printf("Decode error: %v\n", err)

	// Output:
	// Decode error: record truncated: 3 bytes is too short for a header
}
