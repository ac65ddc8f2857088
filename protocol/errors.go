package protocol

import "errors"

var (
	// ErrIncompleteFrame is returned while a frame has not been fully buffered yet. It is not a
	// failure: more bytes are needed.
	ErrIncompleteFrame = errors.New("protocol: incomplete frame")
	// ErrFrameTooLarge is returned when a frame declares a length above the configured maximum.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	// ErrMalformed is returned when the bytes of a frame or packet cannot be interpreted.
	ErrMalformed = errors.New("protocol: malformed data")
	// ErrVarIntTooBig is returned when a VarInt continues past its maximum width.
	ErrVarIntTooBig = errors.New("protocol: varint too big")
	// ErrTrailingData is returned when a packet left bytes of its frame unread.
	ErrTrailingData = errors.New("protocol: trailing data after packet")
	// ErrProtocolViolation is returned when a packet is not legal in the current state.
	ErrProtocolViolation = errors.New("protocol: violation")
	// ErrUnsupportedVersion is returned when a version is required but not supported.
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	// ErrIllegalTransition is returned when a state change skips or reverses a phase.
	ErrIllegalTransition = errors.New("protocol: illegal state transition")
)
