package rawspeed

import "errors"

var (
	ErrShortInput         = errors.New("rawspeed: input ended unexpectedly")
	ErrTruncatedBitstream = errors.New("rawspeed: truncated bit stream")
	ErrCorruptHeader      = errors.New("rawspeed: corrupt header")
	ErrInputRange         = errors.New("rawspeed: parameter outside supported range")
	ErrOutOfMemory        = errors.New("rawspeed: allocation limit exceeded")
	ErrConfig             = errors.New("rawspeed: invalid configuration")
	ErrDecodeFailed       = errors.New("rawspeed: decode failed")
)
