// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import (
	"errors"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

// Quantity limits from the Modbus application protocol.
const (
	maxReadQuantity  = 125
	maxWriteQuantity = 123
)

type handlerFunc func(*Dispatcher, *Request) ([]byte, byte)

// Dispatcher validates requests against the register map's domain rules
// and applies them to the store. Protocol errors are answered with
// exception frames and never mutate register state.
type Dispatcher struct {
	slaveID  byte
	store    *regmap.Store
	handlers [256]handlerFunc
}

// NewDispatcher creates a dispatcher for the given slave address,
// operating on the given register store.
func NewDispatcher(slaveID byte, store *regmap.Store) *Dispatcher {
	d := &Dispatcher{slaveID: slaveID, store: store}
	d.handlers[FuncReadHolding] = (*Dispatcher).readHolding
	d.handlers[FuncWriteSingle] = (*Dispatcher).writeSingle
	d.handlers[FuncWriteMultiple] = (*Dispatcher).writeMultiple
	return d
}

// Handle processes one request. It returns the response frame and the
// exception code used for statistics (0 on success). A nil response with
// code 0 means the frame was addressed to another slave and is ignored.
func (d *Dispatcher) Handle(req *Request) ([]byte, byte) {
	if req.SlaveID != d.slaveID {
		return nil, 0
	}
	h := d.handlers[req.Function]
	if h == nil {
		return exceptionResponse(d.slaveID, req.Function, ExcIllegalFunction), ExcIllegalFunction
	}
	return h(d, req)
}

func (d *Dispatcher) readHolding(req *Request) ([]byte, byte) {
	if req.Quantity == 0 || req.Quantity > maxReadQuantity {
		return exceptionResponse(d.slaveID, req.Function, ExcIllegalValue), ExcIllegalValue
	}
	values, err := d.store.ReadRange(req.Addr, req.Quantity)
	if err != nil {
		return d.exception(req, err)
	}
	return readResponse(d.slaveID, values), 0
}

func (d *Dispatcher) writeSingle(req *Request) ([]byte, byte) {
	if err := d.store.Write(req.Addr, req.Value); err != nil {
		return d.exception(req, err)
	}
	return echoResponse(d.slaveID, req.Function, req.Addr, req.Value), 0
}

func (d *Dispatcher) writeMultiple(req *Request) ([]byte, byte) {
	if req.Quantity == 0 || req.Quantity > maxWriteQuantity {
		return exceptionResponse(d.slaveID, req.Function, ExcIllegalValue), ExcIllegalValue
	}
	if err := d.store.WriteRange(req.Addr, req.Values); err != nil {
		return d.exception(req, err)
	}
	return echoResponse(d.slaveID, req.Function, req.Addr, req.Quantity), 0
}

// exception maps a store access error onto its Modbus exception code.
func (d *Dispatcher) exception(req *Request, err error) ([]byte, byte) {
	code := byte(ExcSlaveFailure)
	switch {
	case errors.Is(err, regmap.ErrIllegalAddress):
		code = ExcIllegalAddress
	case errors.Is(err, regmap.ErrIllegalValue):
		code = ExcIllegalValue
	}
	return exceptionResponse(d.slaveID, req.Function, code), code
}
