package sensor

import (
	"go.bug.st/serial"
)

// WriteParam issues a parameter-write frame (spec §4.1 "Parameter write").
// Callers must have paused the owning Driver first (spec §5, "Shared-resource
// policy": CMD=106 parameter writes are performed by the main thread only
// while the sensor thread is paused).
func WriteParam(port serial.Port, addr byte, code, val uint16) error {
	_, err := port.Write(ParamWriteFrame(addr, code, val))
	return err
}

// CommitFlash issues the flash-commit frame (spec §4.1 "Commit to flash").
func CommitFlash(port serial.Port, addr byte) error {
	_, err := port.Write(CommitFlashFrame(addr))
	return err
}
