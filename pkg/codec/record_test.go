package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

func TestRecordCodec_EncodeDecodeRoundTrip(t *testing.T) {
	codec := NewRecordCodec()

	testCases := []struct {
		name      string
		typ       RecordType
		stream    uint32
		timestamp float64
		payload   []byte
	}{
		{
			name:    "declare label",
			typ:     RecordDeclare,
			stream:  100<<16 | 1,
			payload: []byte("RealSense_D435i_Color|id:1001"),
		},
		{
			name:    "configuration json",
			typ:     RecordConfiguration,
			stream:  100<<16 | 2,
			payload: []byte(`{"width":640,"height":480}`),
		},
		{
			name:      "data with fractional timestamp",
			typ:       RecordData,
			stream:    100<<16 | 3,
			timestamp: 1612345678.123456,
			payload:   []byte{0x00, 0x01, 0x02, 0x03},
		},
		{
			name:    "empty payload",
			typ:     RecordDeclare,
			stream:  1,
			payload: []byte{},
		},
		{
			name:      "large payload",
			typ:       RecordData,
			stream:    7,
			timestamp: 3.5,
			payload:   bytes.Repeat([]byte("v"), 640*480*3),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := codec.Encode(tc.typ, tc.stream, tc.timestamp, tc.payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(encoded) != HeaderSize+len(tc.payload) {
				t.Fatalf("encoded size = %d, want %d", len(encoded), HeaderSize+len(tc.payload))
			}

			record, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if err := record.Validate(); err != nil {
				t.Fatalf("Record validation failed: %v", err)
			}

			if record.Type != tc.typ {
				t.Errorf("Type mismatch: got %v, want %v", record.Type, tc.typ)
			}
			if record.Stream != tc.stream {
				t.Errorf("Stream mismatch: got %d, want %d", record.Stream, tc.stream)
			}
			if record.Timestamp != tc.timestamp {
				t.Errorf("Timestamp mismatch: got %v, want %v", record.Timestamp, tc.timestamp)
			}
			if !bytes.Equal(record.Payload, tc.payload) {
				t.Errorf("Payload mismatch")
			}
			if record.Size != uint32(len(tc.payload)) {
				t.Errorf("Size mismatch: got %d, want %d", record.Size, len(tc.payload))
			}
		})
	}
}

func TestRecordCodec_CRCValidation(t *testing.T) {
	codec := NewRecordCodec()

	encode := func(t *testing.T) []byte {
		t.Helper()
		encoded, err := codec.Encode(RecordData, 42, 1.5, []byte("payload bytes"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		return encoded
	}

	t.Run("corrupted CRC fails validation", func(t *testing.T) {
		encoded := encode(t)
		encoded[0] ^= 0xFF

		record, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if err := record.Validate(); !errors.Is(err, ErrChecksum) {
			t.Errorf("expected ErrChecksum, got %v", err)
		}
	})

	t.Run("corrupted stream fails validation", func(t *testing.T) {
		encoded := encode(t)
		encoded[6] ^= 0x01

		record, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if err := record.Validate(); !errors.Is(err, ErrChecksum) {
			t.Errorf("expected ErrChecksum, got %v", err)
		}
	})

	t.Run("corrupted timestamp fails validation", func(t *testing.T) {
		encoded := encode(t)
		encoded[12] ^= 0x10

		record, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if err := record.Validate(); !errors.Is(err, ErrChecksum) {
			t.Errorf("expected ErrChecksum, got %v", err)
		}
	})

	t.Run("corrupted payload fails validation", func(t *testing.T) {
		encoded := encode(t)
		encoded[len(encoded)-1] ^= 0xFF

		record, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if err := record.Validate(); !errors.Is(err, ErrChecksum) {
			t.Errorf("expected ErrChecksum, got %v", err)
		}
	})
}

func TestRecordCodec_DecodeTruncated(t *testing.T) {
	codec := NewRecordCodec()

	encoded, err := codec.Encode(RecordData, 1, 0, []byte("0123456789"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for _, n := range []int{0, 1, HeaderSize - 1, HeaderSize, len(encoded) - 1} {
		if _, err := codec.Decode(encoded[:n]); !errors.Is(err, ErrShortRecord) {
			t.Errorf("Decode(%d bytes): expected ErrShortRecord, got %v", n, err)
		}
	}
}

func TestRecordCodec_HeaderLayout(t *testing.T) {
	codec := NewRecordCodec()

	encoded, err := codec.Encode(RecordConfiguration, 0x00640002, 2.25, []byte("{}"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if encoded[4] != byte(RecordConfiguration) {
		t.Errorf("type byte = %d", encoded[4])
	}
	if got := binary.LittleEndian.Uint32(encoded[5:9]); got != 0x00640002 {
		t.Errorf("stream = %#x", got)
	}
	if got := math.Float64frombits(binary.LittleEndian.Uint64(encoded[9:17])); got != 2.25 {
		t.Errorf("timestamp = %v", got)
	}
	if got := binary.LittleEndian.Uint32(encoded[17:21]); got != 2 {
		t.Errorf("size = %d", got)
	}
	if string(encoded[21:]) != "{}" {
		t.Errorf("payload = %q", encoded[21:])
	}
}

func TestRecordCodec_ReadRecord(t *testing.T) {
	codec := NewRecordCodec()

	var buf bytes.Buffer
	payloads := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for i, p := range payloads {
		encoded, err := codec.Encode(RecordData, 9, float64(i), p)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		buf.Write(encoded)
	}

	t.Run("sequential read until EOF", func(t *testing.T) {
		r := bytes.NewReader(buf.Bytes())
		for i, want := range payloads {
			rec, err := codec.ReadRecord(r)
			if err != nil {
				t.Fatalf("ReadRecord %d: %v", i, err)
			}
			if !bytes.Equal(rec.Payload, want) {
				t.Errorf("record %d payload = %q, want %q", i, rec.Payload, want)
			}
			if rec.Timestamp != float64(i) {
				t.Errorf("record %d timestamp = %v", i, rec.Timestamp)
			}
		}
		if _, err := codec.ReadRecord(r); err != io.EOF {
			t.Errorf("expected io.EOF, got %v", err)
		}
	})

	t.Run("truncated tail", func(t *testing.T) {
		data := buf.Bytes()[:buf.Len()-2]
		r := bytes.NewReader(data)
		var err error
		for err == nil {
			_, err = codec.ReadRecord(r)
		}
		if !errors.Is(err, ErrShortRecord) {
			t.Errorf("expected ErrShortRecord, got %v", err)
		}
	})

	t.Run("oversized length field", func(t *testing.T) {
		data := append([]byte(nil), buf.Bytes()...)
		binary.LittleEndian.PutUint32(data[17:21], 0xFFFFFFF0)
		_, err := codec.ReadRecord(bytes.NewReader(data))
		if !errors.Is(err, ErrShortRecord) {
			t.Errorf("expected ErrShortRecord, got %v", err)
		}
	})

	t.Run("payload spanning several read steps", func(t *testing.T) {
		big := bytes.Repeat([]byte("0123456789abcdef"), readStep/8+3)
		encoded, err := codec.Encode(RecordData, 1, 0, big)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		rec, err := codec.ReadRecord(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !bytes.Equal(rec.Payload, big) {
			t.Errorf("payload of %d bytes did not round trip", len(big))
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		data := append([]byte(nil), buf.Bytes()...)
		data[4] = 0x7F
		if _, err := codec.ReadRecord(bytes.NewReader(data)); !errors.Is(err, ErrUnknownType) {
			t.Errorf("expected ErrUnknownType, got %v", err)
		}
	})

	t.Run("skip counts without payloads", func(t *testing.T) {
		r := bytes.NewReader(buf.Bytes())
		count := 0
		for {
			rec, err := codec.SkipRecord(r)
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("SkipRecord: %v", err)
			}
			if rec.Payload != nil {
				t.Errorf("SkipRecord retained a payload")
			}
			count++
		}
		if count != len(payloads) {
			t.Errorf("count = %d, want %d", count, len(payloads))
		}
	})
}

func TestRecordType_String(t *testing.T) {
	cases := map[RecordType]string{
		RecordDeclare:       "declare",
		RecordConfiguration: "configuration",
		RecordData:          "data",
		RecordIndex:         "index",
		RecordType(9):       "RecordType(9)",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", uint8(typ), got, want)
		}
	}
	if RecordType(0).Valid() || RecordType(5).Valid() {
		t.Error("out of range types reported valid")
	}
}
