package container

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompression(t *testing.T) {
	for _, c := range allCompressions {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression("LZ4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, got)

	_, err = ParseCompression("brotli")
	assert.ErrorContains(t, err, "none, lz4, zstd, snappy")
}

func TestCompressionFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flag := CompressionFlag(DefaultCompression)
	fs.VarP(&flag, "compression", "c", "body compression ("+CompressionFlagValues()+")")

	assert.Equal(t, "lz4", fs.Lookup("compression").DefValue)
	require.NoError(t, fs.Parse([]string{"-c", "zstd"}))
	assert.Equal(t, CompressionZSTD, flag.Value())
	assert.Equal(t, "compression", flag.Type())

	assert.Error(t, fs.Parse([]string{"--compression", "gzip"}))
}

func TestRawWriterReader_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("stream container body "), 10000)

	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			counter := &countingWriter{w: &buf}
			w := newRawWriter(counter, 1024)

			_, err := w.Write([]byte("HDR!"))
			require.NoError(t, err)
			require.NoError(t, w.beginCompression(c))
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.endCompression())
			bodyEnd := counter.n
			_, err = w.Write([]byte("TAIL"))
			require.NoError(t, err)
			require.NoError(t, w.Flush())

			data := buf.Bytes()
			assert.Equal(t, "HDR!", string(data[:4]))
			assert.Equal(t, "TAIL", string(data[len(data)-4:]))
			assert.Equal(t, int64(len(data)-4), bodyEnd)
			if c != CompressionNone {
				assert.Less(t, bodyEnd, int64(len(payload)), "repetitive body should compress")
			}

			r, err := newRawReader(bytes.NewReader(data[4:bodyEnd]), c, 0)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestRawWriter_UnknownCompression(t *testing.T) {
	w := newRawWriter(io.Discard, 0)
	assert.Error(t, w.beginCompression(Compression(9)))

	_, err := newRawReader(bytes.NewReader(nil), Compression(9), 0)
	assert.Error(t, err)
}

func TestPhysicalID(t *testing.T) {
	p := PhysicalID{Type: TypeMotionSensor, Instance: 2}
	assert.Equal(t, "300-2", p.String())
	assert.Equal(t, uint32(300<<16|2), p.Pack())
	assert.Equal(t, p, UnpackPhysicalID(p.Pack()))

	assert.Equal(t, "motion_sensor", TypeMotionSensor.String())
	assert.Equal(t, "type_7", RecordableTypeID(7).String())
	id, ok := ParseRecordableType("camera")
	assert.True(t, ok)
	assert.Equal(t, TypeCamera, id)
}
