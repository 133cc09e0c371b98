package mc13192

import (
	"errors"
	"fmt"
)

var (
	ErrPkg            = errors.New("mc13192")
	ErrBusy           = errors.New("transceiver busy")
	ErrInvalidChannel = errors.New("invalid channel")
	ErrOutOfRange     = errors.New("value out of range")
	ErrFault          = errors.New("bus fault")
	ErrPacketSize     = errors.New("invalid packet size")
	ErrNotAsleep      = errors.New("transceiver is not dozing or hibernating")
	ErrLockLost       = errors.New("LO lock lost")
	ErrDeviceReset    = errors.New("transceiver reset itself")
	ErrAborted        = errors.New("request aborted")
	ErrNoReset        = errors.New("no attention after reset")
)

func wrap(err error) error {
	return fmt.Errorf("%w: %w", ErrPkg, err)
}

func fault(cause error) error {
	return fmt.Errorf("%w: %w: %w", ErrPkg, ErrFault, cause)
}
