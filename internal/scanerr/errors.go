// Package scanerr defines the closed taxonomy of failure kinds shared by
// every scan-head client package. Callers compare with errors.Is against the
// sentinel Kind values rather than switching on concrete error types.
package scanerr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy entries from the scan-head failure model.
type Kind error

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", KindX) to attach
// context; callers still match with errors.Is(err, scanerr.KindX).
var (
	BadPacket           Kind = errors.New("bad packet")
	VersionIncompatible Kind = errors.New("version incompatible")
	NotConnected        Kind = errors.New("not connected")
	AlreadyConnected    Kind = errors.New("already connected")
	NotScanning         Kind = errors.New("not scanning")
	AlreadyScanning     Kind = errors.New("already scanning")
	InvalidArgument     Kind = errors.New("invalid argument")
	OutOfRange          Kind = errors.New("out of range")
	BufferOverflow      Kind = errors.New("buffer overflow")
	DeviceTimeout       Kind = errors.New("device timeout")
	NotFound            Kind = errors.New("not found")
	Canceled            Kind = errors.New("canceled")
)

// Wrap attaches a message to a Kind while preserving errors.Is matching.
func Wrap(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Is reports whether err ultimately wraps kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
