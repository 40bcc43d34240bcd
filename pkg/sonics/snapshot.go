// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

// ChannelSnapshot is one channel's pre-shutdown diagnostic record.
type ChannelSnapshot struct {
	State     uint16 `cbor:"1,keyasint"`
	FaultCode uint16 `cbor:"2,keyasint"`
	Amplitude uint16 `cbor:"3,keyasint"`
}

// Snapshot is the diagnostic record persisted at shutdown and loaded at
// boot into the read-only "previous state" registers. It is never used
// to resume operation.
type Snapshot struct {
	SavedAt  time.Time                            `cbor:"1,keyasint"`
	Channels [regmap.ChannelCount]ChannelSnapshot `cbor:"2,keyasint"`
}

// SaveSnapshot writes the snapshot to path.
func SaveSnapshot(path string, snap Snapshot) error {
	data, err := cbor.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot write: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot from path. A missing file is not an
// error; it returns a nil snapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot read: %w", err)
	}
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	return &snap, nil
}

// ApplyToStore populates the diagnostic registers from the snapshot.
func (s *Snapshot) ApplyToStore(store *regmap.Store) {
	for ch, rec := range s.Channels {
		store.Set(regmap.ChannelAddr(ch, regmap.OffPrevState), rec.State)
		store.Set(regmap.ChannelAddr(ch, regmap.OffPrevFaultCode), rec.FaultCode)
		store.Set(regmap.ChannelAddr(ch, regmap.OffPrevAmplitude), rec.Amplitude)
	}
}
