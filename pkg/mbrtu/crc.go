// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

// Checksum computes the CRC-16/MODBUS checksum for the given data
// (poly 0xA001 reflected, seed 0xFFFF, LSB-first accumulation).
func Checksum(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendChecksum appends the frame checksum little-endian, as it travels
// on the wire.
func AppendChecksum(frame []byte) []byte {
	crc := Checksum(frame)
	return append(frame, byte(crc&0xFF), byte(crc>>8))
}

// checkTrailer validates the trailing little-endian checksum of a
// complete frame.
func checkTrailer(frame []byte) bool {
	if len(frame) < rtuMinFrameSize {
		return false
	}
	data := frame[:len(frame)-2]
	want := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	return Checksum(data) == want
}
