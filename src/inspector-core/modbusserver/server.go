// Package modbusserver exposes the Register Store as a Modbus TCP slave
// (spec §6): unit ID 1, holding registers read/write, input registers
// read-only, coils and discrete inputs unsupported.
package modbusserver

import (
	"time"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/simonvetter/modbus"
	"github.com/sirupsen/logrus"
)

const unitID = 1

// holdingBase/inputBase convert the simonvetter/modbus library's 0-based
// protocol addresses into this module's Modicon-notation register
// addresses (40001+/30001+), matching registers.Store's own API.
const (
	holdingBase = 40001
	inputBase   = 30001
)

// Handler adapts *registers.Store to modbus.RequestHandler.
type Handler struct {
	store *registers.Store
	log   *logrus.Entry
}

// NewHandler returns a Handler bound to store.
func NewHandler(store *registers.Store, log *logrus.Entry) *Handler {
	return &Handler{store: store, log: log}
}

// NewServer builds a modbus.ModbusServer listening at addr (e.g.
// "tcp://0.0.0.0:502") and backed by a Handler over store.
func NewServer(addr string, store *registers.Store, log *logrus.Entry) (*modbus.ModbusServer, error) {
	return modbus.NewServer(&modbus.ServerConfiguration{
		URL:        addr,
		Timeout:    30 * time.Second,
		MaxClients: 10,
	}, NewHandler(store, log))
}

// HandleCoils reports coils as unsupported; this system has no boolean
// outputs in the external contract (spec §6).
func (h *Handler) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleDiscreteInputs reports discrete inputs as unsupported for the same
// reason as HandleCoils.
func (h *Handler) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleHoldingRegisters serves function codes 3/6/16 against the holding
// bank, word by word, writing through on req.IsWrite.
func (h *Handler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != unitID {
		return nil, modbus.ErrIllegalFunction
	}
	res := make([]uint16, 0, req.Quantity)
	for i := 0; i < int(req.Quantity); i++ {
		addr := holdingBase + int(req.Addr) + i
		if req.IsWrite {
			if err := h.store.SetWord(registers.Holding, addr, req.Args[i]); err != nil {
				return nil, modbus.ErrIllegalDataAddress
			}
		}
		v, err := h.store.GetWord(registers.Holding, addr)
		if err != nil {
			return nil, modbus.ErrIllegalDataAddress
		}
		res = append(res, v)
	}
	return res, nil
}

// HandleInputRegisters serves function code 4 against the input bank,
// read-only (the modbus protocol itself forbids writes to this type).
func (h *Handler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	if req.UnitId != unitID {
		return nil, modbus.ErrIllegalFunction
	}
	res := make([]uint16, 0, req.Quantity)
	for i := 0; i < int(req.Quantity); i++ {
		addr := inputBase + int(req.Addr) + i
		v, err := h.store.GetWord(registers.Input, addr)
		if err != nil {
			return nil, modbus.ErrIllegalDataAddress
		}
		res = append(res, v)
	}
	return res, nil
}
