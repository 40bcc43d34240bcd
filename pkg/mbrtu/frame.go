// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import "time"

// Supported function codes.
const (
	FuncReadHolding   = 0x03
	FuncWriteSingle   = 0x06
	FuncWriteMultiple = 0x10
)

// Modbus exception codes.
const (
	ExcIllegalFunction = 0x01
	ExcIllegalAddress  = 0x02
	ExcIllegalValue    = 0x03
	ExcSlaveFailure    = 0x04
)

// CRC-16/MODBUS configuration
const (
	crcPolynomial = 0xA001
	crcInitial    = 0xFFFF
)

// RTU framing limits
const (
	rtuMinFrameSize = 4 // slave id + function + 2-byte crc
	rtuMaxFrameSize = 256
	fixedFrameSize  = 8 // every request except FuncWriteMultiple
)

// Request is one validated, checksum-verified inbound frame.
type Request struct {
	SlaveID  byte
	Function byte
	Addr     uint16
	Quantity uint16   // FuncReadHolding / FuncWriteMultiple
	Value    uint16   // FuncWriteSingle
	Values   []uint16 // FuncWriteMultiple payload

	Timestamp time.Time
}

// parseRequest decodes a complete frame whose checksum has already been
// verified. A nil result means the frame shape does not match its
// function code; it is dropped as malformed.
func parseRequest(frame []byte, now time.Time) *Request {
	pdu := frame[:len(frame)-2]
	req := &Request{
		SlaveID:   pdu[0],
		Function:  pdu[1],
		Timestamp: now,
	}

	switch req.Function {
	case FuncReadHolding:
		if len(pdu) != 6 {
			return nil
		}
		req.Addr = word(pdu[2], pdu[3])
		req.Quantity = word(pdu[4], pdu[5])

	case FuncWriteSingle:
		if len(pdu) != 6 {
			return nil
		}
		req.Addr = word(pdu[2], pdu[3])
		req.Value = word(pdu[4], pdu[5])

	case FuncWriteMultiple:
		if len(pdu) < 7 {
			return nil
		}
		req.Addr = word(pdu[2], pdu[3])
		req.Quantity = word(pdu[4], pdu[5])
		count := int(pdu[6])
		if count != len(pdu)-7 || count != int(req.Quantity)*2 {
			return nil
		}
		req.Values = make([]uint16, req.Quantity)
		for i := range req.Values {
			req.Values[i] = word(pdu[7+2*i], pdu[8+2*i])
		}

	default:
		// Unknown function codes keep the fixed frame shape; the
		// dispatcher answers with an illegal-function exception.
		if len(pdu) != 6 {
			return nil
		}
		req.Addr = word(pdu[2], pdu[3])
		req.Value = word(pdu[4], pdu[5])
	}

	return req
}

// readResponse builds the FuncReadHolding response frame.
func readResponse(slaveID byte, values []uint16) []byte {
	frame := make([]byte, 0, 3+2*len(values)+2)
	frame = append(frame, slaveID, FuncReadHolding, byte(2*len(values)))
	for _, v := range values {
		frame = append(frame, byte(v>>8), byte(v&0xFF))
	}
	return AppendChecksum(frame)
}

// echoResponse builds the FuncWriteSingle response, which echoes the
// request's address and value fields.
func echoResponse(slaveID, function byte, addr, value uint16) []byte {
	frame := []byte{slaveID, function,
		byte(addr >> 8), byte(addr & 0xFF),
		byte(value >> 8), byte(value & 0xFF)}
	return AppendChecksum(frame)
}

// exceptionResponse builds an exception frame: the request's function
// code with its high bit set, followed by the exception code.
func exceptionResponse(slaveID, function, code byte) []byte {
	return AppendChecksum([]byte{slaveID, function | 0x80, code})
}

func word(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}
