package state

import (
	"errors"
	"fmt"

	"crisim/internal/fixed"
)

var (
	ErrUnknownSlot = errors.New("unknown neuron slot")
	ErrNoStep      = errors.New("no step in progress")
)

type journalEntry struct {
	slot int
	prev int64
}

// Bank holds membrane potentials by dense slot. Writes made between Begin and
// Commit are journaled so Rollback restores the exact pre-step values.
type Bank struct {
	format     fixed.Format
	potentials []int64

	// slots whose potential may be nonzero, with membership flags
	active   []int
	isActive []bool

	inStep  bool
	journal []journalEntry
	touched []bool
}

func NewBank(format fixed.Format, size int) *Bank {
	return &Bank{
		format:     format,
		potentials: make([]int64, size),
		isActive:   make([]bool, size),
		touched:    make([]bool, size),
	}
}

func (b *Bank) Len() int { return len(b.potentials) }

// Reset zeros every potential and discards any open step journal.
func (b *Bank) Reset() {
	for i := range b.potentials {
		b.potentials[i] = 0
		b.isActive[i] = false
		b.touched[i] = false
	}
	b.active = b.active[:0]
	b.journal = b.journal[:0]
	b.inStep = false
}

func (b *Bank) Potential(slot int) (int64, error) {
	if slot < 0 || slot >= len(b.potentials) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	return b.potentials[slot], nil
}

// ApplyCurrent accumulates delta into slot. On overflow the potential is left
// unchanged and fixed.ErrOverflow is returned.
func (b *Bank) ApplyCurrent(slot int, delta int64) error {
	if slot < 0 || slot >= len(b.potentials) {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	next, err := b.format.AddPotential(b.potentials[slot], delta)
	if err != nil {
		return err
	}
	b.set(slot, next)
	return nil
}

// Set overwrites the potential of slot, used by the engine to store the result
// of a model evaluation.
func (b *Bank) Set(slot int, v int64) error {
	if slot < 0 || slot >= len(b.potentials) {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	if err := b.format.CheckPotential(v); err != nil {
		return err
	}
	b.set(slot, v)
	return nil
}

func (b *Bank) set(slot int, v int64) {
	if b.inStep && !b.touched[slot] {
		b.touched[slot] = true
		b.journal = append(b.journal, journalEntry{slot: slot, prev: b.potentials[slot]})
	}
	b.potentials[slot] = v
	if v != 0 && !b.isActive[slot] {
		b.isActive[slot] = true
		b.active = append(b.active, slot)
	}
}

// Active returns the slots that may hold a nonzero potential. The slice is
// only valid until the next write.
func (b *Bank) Active() []int { return b.active }

// Begin opens a step journal.
func (b *Bank) Begin() {
	b.inStep = true
	b.journal = b.journal[:0]
}

// Commit closes the journal and compacts the active set.
func (b *Bank) Commit() error {
	if !b.inStep {
		return ErrNoStep
	}
	b.closeJournal()
	b.compactActive()
	return nil
}

// Rollback restores every slot written since Begin.
func (b *Bank) Rollback() error {
	if !b.inStep {
		return ErrNoStep
	}
	for i := len(b.journal) - 1; i >= 0; i-- {
		e := b.journal[i]
		b.potentials[e.slot] = e.prev
	}
	b.closeJournal()
	b.compactActive()
	return nil
}

func (b *Bank) closeJournal() {
	for _, e := range b.journal {
		b.touched[e.slot] = false
	}
	b.journal = b.journal[:0]
	b.inStep = false
}

func (b *Bank) compactActive() {
	kept := b.active[:0]
	for _, slot := range b.active {
		if b.potentials[slot] != 0 {
			kept = append(kept, slot)
			continue
		}
		b.isActive[slot] = false
	}
	b.active = kept
}

// Snapshot returns a copy of every potential, indexed by slot.
func (b *Bank) Snapshot() []int64 {
	return append([]int64(nil), b.potentials...)
}

// Resize returns a bank of the given size whose slots are filled from carry,
// which maps each new slot to an old slot (or -1 for a fresh neuron).
func (b *Bank) Resize(carry []int) *Bank {
	next := NewBank(b.format, len(carry))
	for slot, old := range carry {
		if old < 0 || old >= len(b.potentials) {
			continue
		}
		if v := b.potentials[old]; v != 0 {
			next.set(slot, v)
		}
	}
	return next
}
