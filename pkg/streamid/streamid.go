// Package streamid embeds caller-chosen logical stream ids in container
// stream labels.
//
// A label carries its logical id as a suffix:
//
//	RealSense_D435i_Color|id:1001
//
// Decode splits on the last "|id:" marker, so a label that itself contains
// the marker still round-trips through Encode and Decode.
package streamid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Marker separates the human readable label from the logical id.
const Marker = "|id:"

var (
	// ErrNoIdentifier is returned when a label carries no id marker.
	ErrNoIdentifier = errors.New("label has no embedded stream id")
	// ErrInvalidIdentifier is returned when the text after the marker is not
	// an unsigned integer.
	ErrInvalidIdentifier = errors.New("label has an invalid embedded stream id")
)

// Encode returns label with id appended after the marker.
func Encode(label string, id uint32) string {
	return label + Marker + strconv.FormatUint(uint64(id), 10)
}

// Decode recovers the label and logical id written by Encode.
func Decode(physical string) (string, uint32, error) {
	i := strings.LastIndex(physical, Marker)
	if i < 0 {
		return "", 0, ErrNoIdentifier
	}

	suffix := physical[i+len(Marker):]
	if suffix == "" || suffix[0] == '+' || suffix[0] == '-' {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, suffix)
	}
	id, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, suffix)
	}
	return physical[:i], uint32(id), nil
}
