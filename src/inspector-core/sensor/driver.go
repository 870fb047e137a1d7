// Package sensor owns the RS-485 serial port connecting to four RIFTEK
// RF602 laser triangulation sensors and turns their wire protocol into a
// stream of Sample values (spec §4.1).
//
// The Driver runs its quad-read loop on a dedicated goroutine (spec §5,
// "Sensor thread") and never blocks its consumers: decoded samples are
// pushed into a bounded, newest-wins ring buffer (ringbuffer.RingBuffer)
// that a consumer drains with a non-blocking Pop.
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/lasergeom/inspector-core/src/inspector-core/ringbuffer"
	"github.com/lasergeom/inspector-core/src/inspector-core/util"
)

const (
	baudRate            = 921600
	readTimeout         = 2 * time.Millisecond
	broadcastSettle     = 50 * time.Microsecond
	consecutiveErrLimit = 5
	reconnectInterval   = 5 * time.Second
	bufferCapacity      = 1000
)

// mode returns the serial.Mode used on the RS-485 bus: 8 data bits, even
// parity, one stop bit ("8-E-1"), no flow control.
func mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.EvenParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
}

// portCommand lets another goroutine ask the port-owning goroutine to run
// an operation directly on the port, e.g. a CMD=106 parameter write (spec
// §5, "Shared-resource policy": "parameter writes are performed by the main
// thread only while the sensor thread is paused"). The quad-read loop drains
// this channel between read rounds instead of reading, giving the caller
// exclusive access without a separate pause/resume handshake.
type portCommand struct {
	run  func(serial.Port) error
	done chan error
}

// Driver owns the serial port for its lifetime and feeds decoded Samples
// into a bounded ring buffer (spec §4.1, §5).
type Driver struct {
	ctx        context.Context
	log        *logrus.Entry
	portName   string
	buffer     *ringbuffer.RingBuffer[Sample]
	errorCount int

	// connected reports whether the most recent quad-read round completed
	// without a transport error and with every sensor read succeeding; read
	// by consumers via Connected().
	connected bool

	commands chan portCommand
}

// New returns a driver for the named serial port. Call Run to start
// reading; Run blocks until ctx is cancelled.
func New(ctx context.Context, log *logrus.Entry, portName string) *Driver {
	return &Driver{
		ctx:      ctx,
		log:      log.WithField("component", "sensor"),
		portName: portName,
		buffer:   ringbuffer.New[Sample](bufferCapacity),
		commands: make(chan portCommand),
	}
}

// Pop drains the oldest buffered sample, if any.
func (d *Driver) Pop() (Sample, bool) {
	return d.buffer.Pop()
}

// Connected reports the sensor-error bit state (spec AddrSensorOK: 1 = OK,
// 0 = error).
func (d *Driver) Connected() bool {
	return d.connected
}

// WriteParameter performs a CMD=106 parameter write followed by a flash
// commit on sensor addr, pausing the quad-read loop for the duration of the
// call so the two share the port safely (spec §4.4 CMD=106, §5).
func (d *Driver) WriteParameter(addr byte, code, val uint16) error {
	return d.withPort(func(port serial.Port) error {
		if err := WriteParam(port, addr, code, val); err != nil {
			return err
		}
		return CommitFlash(port, addr)
	})
}

// withPort submits fn to run on the goroutine that owns the serial port and
// waits for it to complete. Returns an error if the driver isn't currently
// connected to a port.
func (d *Driver) withPort(fn func(serial.Port) error) error {
	cmd := portCommand{run: fn, done: make(chan error, 1)}
	select {
	case d.commands <- cmd:
	case <-time.After(200 * time.Millisecond):
		return fmt.Errorf("sensor: driver not accepting commands (port not open)")
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

// Run opens the port and loops the quad-read sequence until ctx is
// cancelled, reconnecting on sustained failure (spec §4.1 "Reconnect").
func (d *Driver) Run() {
	boff := &backoff.ConstantBackOff{Interval: reconnectInterval}

	for d.ctx.Err() == nil {
		err := d.runOnce()
		if err != nil {
			d.log.WithField("error", err).Error("Sensor driver session ended, will reconnect.")
		}
		d.connected = false

		wait := boff.NextBackOff()
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// runOnce opens the port and loops quad-reads until a hard error or
// cancellation. Returns nil only when ctx was cancelled.
func (d *Driver) runOnce() error {
	port, err := serial.Open(d.portName, mode())
	if err != nil {
		return fmt.Errorf("sensor: open %s: %w", d.portName, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(readTimeout); err != nil {
		return fmt.Errorf("sensor: set read timeout: %w", err)
	}

	d.errorCount = 0

	for {
		if d.ctx.Err() != nil {
			return nil
		}

		select {
		case cmd := <-d.commands:
			cmd.done <- cmd.run(port)
			continue
		default:
		}

		if !d.portStillEnumerated() {
			return fmt.Errorf("sensor: port %s disappeared from enumeration", d.portName)
		}

		if err := d.handleRound(port); err != nil {
			return err
		}
	}
}

// handleRound performs one quad-read round and updates the consecutive-error
// count and connectivity state from it. Both a broadcast/transport failure
// and a per-sensor read failure (timeout, framing, out-of-range) count
// toward the same limit: spec §7 counts "serial timeout, framing (high-bit
// missing, short read)" errors and reconnects after five in a row (spec
// §4.1 "Reconnect"), and register 30058 (spec §3 invariant 8) must report
// the sensor bus as not-OK for as long as any sensor is failing to read,
// not only while the bus transport itself is down. A non-nil return means
// the caller should force a reconnect.
func (d *Driver) handleRound(port serial.Port) error {
	sample, sensorErrs, err := d.quadRead(port)
	if err != nil {
		d.errorCount++
		d.connected = false
		if d.errorCount >= consecutiveErrLimit {
			return fmt.Errorf("sensor: %d consecutive errors: %w", d.errorCount, err)
		}
		return nil
	}

	if sensorErrs > 0 {
		d.errorCount++
		d.connected = false
		if d.errorCount >= consecutiveErrLimit {
			return fmt.Errorf("sensor: %d consecutive errors: %d sensors failed last round", d.errorCount, sensorErrs)
		}
	} else {
		d.errorCount = 0
		d.connected = true
	}

	d.buffer.Push(sample)
	return nil
}

func (d *Driver) portStillEnumerated() bool {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		// Treat enumeration failure itself as inconclusive, not as a
		// disappearance; the next read attempt will surface a transport
		// error if the port is truly gone.
		return true
	}
	for _, p := range ports {
		if p.Name == d.portName {
			return true
		}
	}
	return false
}

// quadRead performs one broadcast-latch + four-sensor read round (spec
// §4.1 "Quad-read sequence"). sensorErrs counts per-sensor read failures;
// a failure on one sensor does not abort the round.
func (d *Driver) quadRead(port serial.Port) (Sample, int, error) {
	if _, err := port.Write(BroadcastLatchFrame()); err != nil {
		return Sample{}, 0, fmt.Errorf("broadcast latch: %w", err)
	}
	time.Sleep(broadcastSettle)

	sample := Sample{At: time.Now()}
	sensorErrs := 0

	for addr := MinAddr; addr <= MaxAddr; addr++ {
		mm, err := d.readOne(port, byte(addr))
		if err != nil {
			sensorErrs++
			continue
		}
		switch addr {
		case 1:
			sample.S1 = util.PointerTo(mm)
		case 2:
			sample.S2 = util.PointerTo(mm)
		case 3:
			sample.S3 = util.PointerTo(mm)
		case 4:
			sample.S4 = util.PointerTo(mm)
		}
	}

	// A quad-read round never fails outright on a per-sensor basis; only a
	// write/transport failure on the broadcast itself is a hard error, in
	// which case we already returned above.
	return sample, sensorErrs, nil
}

// readOne issues a read-latched request to one sensor and decodes the
// reply, discarding it (returning an error) on any protocol or range
// violation (spec §7 "Protocol format" / "Out-of-range").
func (d *Driver) readOne(port serial.Port, addr byte) (float32, error) {
	if _, err := port.Write(ReadLatchedFrame(addr)); err != nil {
		return 0, fmt.Errorf("sensor %d: write: %w", addr, err)
	}

	var reply [4]byte
	n, err := readFull(port, reply[:])
	if err != nil {
		return 0, fmt.Errorf("sensor %d: read: %w", addr, err)
	}
	if n != 4 {
		return 0, fmt.Errorf("sensor %d: short read (%d bytes)", addr, n)
	}

	raw, err := DecodeReply(reply)
	if err != nil {
		return 0, fmt.Errorf("sensor %d: %w", addr, err)
	}

	mm := RawToMM(raw)
	if mm != 0 && !IsValidMM(mm) {
		return 0, fmt.Errorf("sensor %d: out-of-range reading %.3fmm", addr, mm)
	}
	return mm, nil
}

// readFull reads exactly len(buf) bytes or returns an error, including when
// the port's read timeout expires with fewer bytes than requested.
func readFull(port serial.Port, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := port.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("read timeout")
		}
		total += n
	}
	return total, nil
}
