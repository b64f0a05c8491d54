// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package btscontext replaces the reference's gBTS/gSipInterface/gConfig/
// gTMSITable globals (spec.md §9 Design Notes) with a single context
// struct injected into every subsystem at construction. It carries only
// the state actually shared across the L1 and SIP stacks: the TDMA clock,
// the cell identity, and the SIP interface handle the dialog layer writes
// replies through.
package btscontext

import (
	"fmt"
	"sync"

	"github.com/gobts/gobts/internal/config"
	"github.com/gobts/gobts/internal/gsm/clock"
)

// Lifecycle tracks where in init -> started -> stopped -> teardown a
// Context currently sits. Subsystems may assert on this to catch
// use-after-teardown bugs during development.
type Lifecycle int

const (
	LifecycleInit Lifecycle = iota
	LifecycleStarted
	LifecycleStopped
	LifecycleTornDown
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInit:
		return "init"
	case LifecycleStarted:
		return "started"
	case LifecycleStopped:
		return "stopped"
	case LifecycleTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// SIPWriter is the narrow interface the L1/L3 boundary needs to hand a
// reply or request to the SIP interface without importing the whole SIP
// package tree (avoids an import cycle between btscontext and sip/iface).
type SIPWriter interface {
	WriteDialogMessage(tranID string, msg any) error
}

// Context is the single shared handle every GoBTS subsystem is
// constructed with: the BTS clock, cell identity fields read once at
// startup, and the SIP interface used to deliver upstream DialogMessages.
type Context struct {
	Clock *clock.BTSClock

	ARFCNs []int
	Band   string
	BSIC   byte
	LAI    string

	mu  sync.RWMutex
	sip SIPWriter

	lifecycle Lifecycle
}

// New builds a Context from the radio section of the configuration, with
// a fresh BTSClock and no SIP interface attached yet (attached later via
// SetSIPInterface once the SIP stack has started).
func New(cfg config.Radio) *Context {
	return &Context{
		Clock:     clock.NewBTSClock(),
		ARFCNs:    append([]int(nil), cfg.ARFCNs...),
		Band:      cfg.Band,
		BSIC:      byte(cfg.BSIC),
		LAI:       cfg.LAI,
		lifecycle: LifecycleInit,
	}
}

// SetSIPInterface attaches the SIP interface once it has been
// constructed; safe to call concurrently with readers of SIPInterface.
func (c *Context) SetSIPInterface(sip SIPWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sip = sip
}

// SIPInterface returns the currently attached SIP interface, or nil if
// the SIP stack has not started yet.
func (c *Context) SIPInterface() SIPWriter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sip
}

// MarkStarted transitions the context from init to started. It is a
// programming error to call this more than once.
func (c *Context) MarkStarted() error {
	return c.transition(LifecycleInit, LifecycleStarted)
}

// MarkStopped transitions the context from started to stopped.
func (c *Context) MarkStopped() error {
	return c.transition(LifecycleStarted, LifecycleStopped)
}

// MarkTornDown transitions the context from stopped to torn-down.
func (c *Context) MarkTornDown() error {
	return c.transition(LifecycleStopped, LifecycleTornDown)
}

// Lifecycle reports the current lifecycle stage.
func (c *Context) Lifecycle() Lifecycle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lifecycle
}

func (c *Context) transition(from, to Lifecycle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle != from {
		return fmt.Errorf("btscontext: invalid transition %s -> %s from state %s", from, to, c.lifecycle)
	}
	c.lifecycle = to
	return nil
}
