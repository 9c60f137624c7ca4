// Package vision holds the hand-off between the asynchronous vision
// producer and the control loop.
package vision

import "go.uber.org/atomic"

// FrameCenterX is the horizontal center of the Pixy image plane.
const FrameCenterX = 160

// Observation is one tracked object reported by the vision sensor.
type Observation struct {
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	Signature uint16
}

const (
	slotConsumed uint32 = iota
	slotWriting
	slotReady
)

// Mailbox is a single-slot, single-producer/single-consumer handshake.
//
// The producer may only write while the slot is consumed; the consumer may
// only read while it is ready and hands it back with Ack once it is done
// reading. There is no queue: offers made while the slot is ready are
// dropped.
type Mailbox struct {
	state atomic.Uint32
	obs   Observation
}

// NewMailbox returns an empty (consumed) mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Offer publishes obs if the consumer has released the slot. It returns
// false when the previous observation has not been acknowledged yet.
func (m *Mailbox) Offer(obs Observation) bool {
	if !m.state.CompareAndSwap(slotConsumed, slotWriting) {
		return false
	}
	m.obs = obs
	m.state.Store(slotReady)
	return true
}

// Fresh reports whether an unacknowledged observation is waiting.
func (m *Mailbox) Fresh() bool {
	return m.state.Load() == slotReady
}

// Observation returns the pending observation. ok is false when nothing is
// fresh, in which case the fields must not be trusted.
func (m *Mailbox) Observation() (Observation, bool) {
	if m.state.Load() != slotReady {
		return Observation{}, false
	}
	return m.obs, true
}

// Ack releases the slot back to the producer. It must be the consumer's
// last touch of the observation.
func (m *Mailbox) Ack() {
	m.state.CompareAndSwap(slotReady, slotConsumed)
}
