// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import (
	"fmt"
	"time"
)

// Statistics tracks exchange counters and error rates for the serial link.
// Counters reset only on an explicit Reset call.
type Statistics struct {
	StartTime       time.Time
	LastRequestTime time.Time

	// Counters
	RequestsReceived uint64
	ResponsesSent    uint64
	CRCErrors        uint64
	FrameErrors      uint64
	IllegalFunction  uint64
	IllegalAddress   uint64
	IllegalValue     uint64
	SlaveFailures    uint64
	TimeoutEvents    uint64

	// Latency
	MaxResponseTime time.Duration

	// Rates (calculated)
	RequestRate float64 // requests/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// RecordExchange records one completed request/response cycle and its
// dispatch latency.
func (s *Statistics) RecordExchange(elapsed time.Duration) {
	s.ResponsesSent++
	if elapsed > s.MaxResponseTime {
		s.MaxResponseTime = elapsed
	}
}

// RecordException bumps the per-category protocol error counter.
func (s *Statistics) RecordException(code byte) {
	switch code {
	case ExcIllegalFunction:
		s.IllegalFunction++
	case ExcIllegalAddress:
		s.IllegalAddress++
	case ExcIllegalValue:
		s.IllegalValue++
	case ExcSlaveFailure:
		s.SlaveFailures++
	}
}

// ProtocolErrors returns the total count of exception responses.
func (s *Statistics) ProtocolErrors() uint64 {
	return s.IllegalFunction + s.IllegalAddress + s.IllegalValue + s.SlaveFailures
}

// CalculateRates recomputes the request and error rates.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RequestRate = float64(s.RequestsReceived) / elapsed
		errorCount := s.CRCErrors + s.FrameErrors + s.ProtocolErrors() + s.TimeoutEvents
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Requests:        %8d\n", s.RequestsReceived)
	result += fmt.Sprintf("Responses:       %8d\n", s.ResponsesSent)

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.FrameErrors > 0 {
		result += fmt.Sprintf("Frame Errors:    %8d\n", s.FrameErrors)
	}
	if s.ProtocolErrors() > 0 {
		result += fmt.Sprintf("Protocol Errors: %8d\n", s.ProtocolErrors())
		if s.IllegalFunction > 0 {
			result += fmt.Sprintf("  Illegal Function: %5d\n", s.IllegalFunction)
		}
		if s.IllegalAddress > 0 {
			result += fmt.Sprintf("  Illegal Address:  %5d\n", s.IllegalAddress)
		}
		if s.IllegalValue > 0 {
			result += fmt.Sprintf("  Illegal Value:    %5d\n", s.IllegalValue)
		}
		if s.SlaveFailures > 0 {
			result += fmt.Sprintf("  Slave Failure:    %5d\n", s.SlaveFailures)
		}
	}
	if s.TimeoutEvents > 0 {
		result += fmt.Sprintf("Link Timeouts:   %8d\n", s.TimeoutEvents)
	}

	result += fmt.Sprintf("Max Response:    %8s\n", s.MaxResponseTime)
	result += fmt.Sprintf("Request Rate:    %8.1f req/sec\n", s.RequestRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "=====================================\n"

	return result
}

// Reset clears all counters and restarts the rate window.
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
