// Package fourcc converts between OpenCV's packed codec integers and their
// four-character codes. The first character occupies the least significant
// byte, so "MJPG" packs to 0x47504A4D.
package fourcc

import (
	"github.com/pkg/errors"
)

// ErrInvalidCode is returned when a code is not exactly four bytes long.
var ErrInvalidCode = errors.New("fourcc: code must be exactly 4 bytes")

// Code is a packed four-character code.
type Code uint32

// Codecs commonly accepted by OpenCV writers.
const (
	MJPG Code = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	XVID Code = 'X' | 'V'<<8 | 'I'<<16 | 'D'<<24
	MP4V Code = 'm' | 'p'<<8 | '4'<<16 | 'v'<<24
	H264 Code = 'H' | '2'<<8 | '6'<<16 | '4'<<24
	HFYU Code = 'H' | 'F'<<8 | 'Y'<<16 | 'U'<<24
)

// Decode unpacks n into its four characters, lowest byte first. Each byte
// maps to one byte of the result, so the string is always 4 bytes long.
func Decode(n uint32) string {
	b := [4]byte{
		byte(n & 0xFF),
		byte(n >> 8 & 0xFF),
		byte(n >> 16 & 0xFF),
		byte(n >> 24 & 0xFF),
	}
	return string(b[:])
}

// Encode packs a four-byte code, first byte into the lowest byte.
func Encode(s string) (uint32, error) {
	if len(s) != 4 {
		return 0, errors.Wrapf(ErrInvalidCode, "got %q", s)
	}
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24, nil
}

// Parse is Encode returning a Code.
func Parse(s string) (Code, error) {
	n, err := Encode(s)
	return Code(n), err
}

// MustParse is like Parse but panics on a malformed code.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FromFloat converts the float64 OpenCV reports for the FOURCC property.
// The value is truncated like an integer conversion; negative values and
// values beyond 32 bits keep only their low 32 bits.
func FromFloat(f float64) Code {
	return Code(uint32(int64(f)))
}

func (c Code) String() string {
	return Decode(uint32(c))
}

// Float returns the code in the form OpenCV property setters expect.
func (c Code) Float() float64 {
	return float64(uint32(c))
}
