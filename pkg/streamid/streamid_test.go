package streamid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "RealSense_D435i_Color|id:1001", Encode("RealSense_D435i_Color", 1001))
	assert.Equal(t, "|id:1", Encode("", 1))
	assert.Equal(t, "x|id:4294967295", Encode("x", 4294967295))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		physical  string
		wantLabel string
		wantID    uint32
		wantErr   error
	}{
		{name: "simple", physical: "Color|id:1001", wantLabel: "Color", wantID: 1001},
		{name: "empty label", physical: "|id:7", wantLabel: "", wantID: 7},
		{name: "marker inside label", physical: "a|id:7|id:3", wantLabel: "a|id:7", wantID: 3},
		{name: "leading zeros", physical: "x|id:007", wantLabel: "x", wantID: 7},
		{name: "no marker", physical: "RealSense_D435i_Color", wantErr: ErrNoIdentifier},
		{name: "empty suffix", physical: "x|id:", wantErr: ErrInvalidIdentifier},
		{name: "non numeric", physical: "x|id:abc", wantErr: ErrInvalidIdentifier},
		{name: "signed", physical: "x|id:-3", wantErr: ErrInvalidIdentifier},
		{name: "plus sign", physical: "x|id:+3", wantErr: ErrInvalidIdentifier},
		{name: "overflow", physical: "x|id:4294967296", wantErr: ErrInvalidIdentifier},
		{name: "trailing text", physical: "x|id:12 ", wantErr: ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, id, err := Decode(tt.physical)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	labels := []string{"", "Color", "RealSense_D435i_Accel", "spaces and ünïcode", "a|id:7", "trailing|id:"}
	ids := []uint32{1, 2, 1001, 2005, 65535, 4294967295}

	for _, l := range labels {
		for _, id := range ids {
			gotLabel, gotID, err := Decode(Encode(l, id))
			require.NoError(t, err, "label %q id %d", l, id)
			assert.Equal(t, l, gotLabel)
			assert.Equal(t, id, gotID)
		}
	}
}
