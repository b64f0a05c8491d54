// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package dialog implements the SIP dialog state machine (spec.md §4.8)
// over github.com/looplab/fsm, and the dialog map (§3 "SIP dialog") keyed
// by (CallID, local-tag).
package dialog

import (
	"context"
	"sync"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/puzpuzpuz/xsync/v4"
)

// Type names the kind of session a dialog carries, per spec.md §3.
type Type int

const (
	TypeUndefined Type = iota
	TypeRegister
	TypeUnregister
	TypeMOC
	TypeMTC
	TypeMOSMS
	TypeMTSMS
	TypeMOUssd
)

// fine-grained internal FSM states (spec.md §4.8).
const (
	stNull          = "Null"
	stStarting      = "Starting"
	stProceeding    = "Proceeding"
	stRinging       = "Ringing"
	stConnecting    = "Connecting"
	stActive        = "Active"
	stMODClearing   = "MODClearing"
	stMTDClearing   = "MTDClearing"
	stCleared       = "Cleared"
	stMODCanceling  = "MODCanceling"
	stMTDCanceling  = "MTDCanceling"
	stCanceled      = "Canceled"
	stSSFail        = "SSFail"
)

// events driving the internal FSM.
const (
	evInvite    = "invite"
	evTrying    = "trying"
	evRinging   = "ringing"
	evAnswer    = "answer"
	evAck       = "ack"
	evByeMO     = "bye_mo"
	evByeMT     = "bye_mt"
	evCancelMO  = "cancel_mo"
	evCancelMT  = "cancel_mt"
	evCleared   = "cleared"
	evCanceled  = "canceled"
	evFail      = "fail"
)

// State is the coarse DialogState published to L3 (spec.md §4.8).
type State int

const (
	Undefined State = iota
	Started
	Proceeding
	Ringing
	Active
	Bye
	Fail
	Dtmf
)

func (s State) String() string {
	switch s {
	case Started:
		return "Started"
	case Proceeding:
		return "Proceeding"
	case Ringing:
		return "Ringing"
	case Active:
		return "Active"
	case Bye:
		return "Bye"
	case Fail:
		return "Fail"
	case Dtmf:
		return "Dtmf"
	default:
		return "Undefined"
	}
}

// Message is the upward notification delivered to L3 on each forward
// state progression (spec.md §6 "Per-dialog: DialogMessage").
type Message struct {
	TranID        string
	CorrelationID string
	State         State
	SIPCode       int
	AuthRand      string
	AuthReject    string
	Kc            []byte
}

// Key identifies a dialog in the Map.
type Key struct {
	CallID   string
	LocalTag string
}

func (k Key) String() string { return k.CallID + "/" + k.LocalTag }

// Dialog is one SIP session, call, registration, or message exchange.
type Dialog struct {
	mu sync.Mutex

	Type Type

	CallID string

	RemoteURI string
	LocalURI  string
	localTag  string
	remoteTag string // write-once per spec.md §3 invariant

	localCSeq uint32

	RemoteProxyHost string
	RemoteProxyPort int

	Codec   string
	RTPPort int

	LastResponse *message.Message
	InitialINVITE *message.Message

	// correlationID identifies this dialog across logs and metrics
	// independent of its (CallID, local-tag) map key, which can change on
	// Rekey; unlike CallID it is never parsed from or sent on the wire.
	correlationID string

	createdAt  time.Time
	lastChange time.Time

	fsm *fsm.FSM

	onMessage func(Message)
}

// New constructs a dialog in Null state with a freshly generated local tag.
func New(dtype Type, callID, remoteURI, localURI string, onMessage func(Message)) *Dialog {
	d := &Dialog{
		Type:          dtype,
		CallID:        callID,
		RemoteURI:     remoteURI,
		LocalURI:      localURI,
		localTag:      message.NewTag(),
		correlationID: uuid.NewString(),
		createdAt:     time.Now(),
		lastChange:    time.Now(),
		onMessage:     onMessage,
	}
	d.fsm = fsm.NewFSM(stNull, fsm.Events{
		{Name: evInvite, Src: []string{stNull}, Dst: stStarting},
		{Name: evTrying, Src: []string{stStarting}, Dst: stProceeding},
		{Name: evRinging, Src: []string{stStarting, stProceeding, stRinging}, Dst: stRinging},
		{Name: evAnswer, Src: []string{stStarting, stProceeding, stRinging}, Dst: stConnecting},
		{Name: evAck, Src: []string{stConnecting}, Dst: stActive},
		{Name: evByeMO, Src: []string{stActive}, Dst: stMODClearing},
		{Name: evByeMT, Src: []string{stActive}, Dst: stMTDClearing},
		{Name: evCleared, Src: []string{stMODClearing, stMTDClearing}, Dst: stCleared},
		{Name: evCancelMO, Src: []string{stStarting, stProceeding, stRinging}, Dst: stMODCanceling},
		{Name: evCancelMT, Src: []string{stStarting, stProceeding, stRinging}, Dst: stMTDCanceling},
		{Name: evCanceled, Src: []string{stMODCanceling, stMTDCanceling}, Dst: stCanceled},
		{Name: evFail, Src: []string{
			stNull, stStarting, stProceeding, stRinging, stConnecting, stActive,
			stMODClearing, stMTDClearing, stMODCanceling, stMTDCanceling,
		}, Dst: stSSFail},
	}, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			d.handleEnterState(e)
		},
	})
	return d
}

// Key returns the dialog's current map key. New generates the local tag,
// so LocalTag is never empty.
func (d *Dialog) Key() Key {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Key{CallID: d.CallID, LocalTag: d.localTag}
}

// CorrelationID returns the dialog's process-lifetime correlation ID, for
// tying log lines and metrics to one dialog across a Rekey.
func (d *Dialog) CorrelationID() string {
	return d.correlationID
}

// LocalTag returns the local tag.
func (d *Dialog) LocalTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localTag
}

// RemoteTag returns the remote tag, or "" if not yet set.
func (d *Dialog) RemoteTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteTag
}

// SetRemoteTag sets the remote tag exactly once; subsequent calls are a
// no-op, enforcing the spec.md §3 "never changed" invariant.
func (d *Dialog) SetRemoteTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remoteTag == "" {
		d.remoteTag = tag
	}
}

// NextCSeq returns the next outbound in-dialog CSeq, strictly increasing
// per spec.md §8.
func (d *Dialog) NextCSeq() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.localCSeq++
	return d.localCSeq
}

// CurrentState maps the internal fine-grained FSM state to the coarse
// DialogState published to L3.
func (d *Dialog) CurrentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return coarsen(d.fsm.Current())
}

func coarsen(s string) State {
	switch s {
	case stNull:
		return Undefined
	case stStarting:
		return Started
	case stProceeding:
		return Proceeding
	case stRinging:
		return Ringing
	case stConnecting, stActive:
		return Active
	case stMODClearing, stMTDClearing, stCleared:
		return Bye
	case stMODCanceling, stMTDCanceling, stCanceled:
		return Fail
	case stSSFail:
		return Fail
	default:
		return Undefined
	}
}

// Fire advances the internal FSM on event, returning an error if the
// transition is not valid from the current state.
func (d *Dialog) Fire(ctx context.Context, event string, args ...any) error {
	d.mu.Lock()
	prevCoarse := coarsen(d.fsm.Current())
	err := d.fsm.Event(ctx, event, args...)
	d.lastChange = time.Now()
	newCoarse := coarsen(d.fsm.Current())
	cb := d.onMessage
	tranID := d.CallID
	corrID := d.correlationID
	d.mu.Unlock()

	if err != nil {
		// A self-transition (e.g. Ringing -> Ringing) is not an error and
		// falls through so a repeated Proceeding/Ringing is signaled.
		if _, ok := err.(fsm.NoTransitionError); !ok {
			return err
		}
	}

	// Only forward progress is signaled upward, except Proceeding/Ringing
	// may repeat (spec.md §5 "Ordering guarantees").
	if newCoarse == prevCoarse && newCoarse != Proceeding && newCoarse != Ringing {
		return nil
	}
	if cb != nil {
		cb(Message{TranID: tranID, CorrelationID: corrID, State: newCoarse})
	}
	return nil
}

func (d *Dialog) handleEnterState(_ *fsm.Event) {
	// Reserved for future per-state side effects (timer arming lives in
	// the transaction layer, which observes Fire's return instead).
}

// Age returns how long the dialog has sat in its current state.
func (d *Dialog) Age() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.lastChange)
}

// IsStuck reports whether this dialog should be forcibly terminated, per
// spec.md §5 "Stuck detection": age > 30s in Fail/Proceeding/Canceled/
// Cleared, or > 180s in any other non-Active/Register state.
func (d *Dialog) IsStuck() bool {
	d.mu.Lock()
	cur := d.fsm.Current()
	age := time.Since(d.lastChange)
	d.mu.Unlock()

	if cur == stActive {
		return false
	}
	const shortLimit = 30 * time.Second
	const longLimit = 180 * time.Second
	switch cur {
	case stSSFail, stProceeding, stCanceled, stCleared:
		return age > shortLimit
	default:
		return age > longLimit
	}
}

// Map is the process-wide table of live dialogs, keyed by (CallID,
// local-tag), plus the dead-dialog list awaiting disposal. byID is written
// by the UDP receive goroutine on every inbound message and read/ranged by
// the periodic sweep goroutine concurrently, the same concurrency shape as
// the repeater/radio-ID-keyed session tables, so it is backed by
// xsync.Map rather than a mutex-guarded plain map.
type Map struct {
	byID *xsync.Map[Key, *Dialog]

	deadMu sync.Mutex
	dead   []*Dialog
}

// NewMap builds an empty dialog map.
func NewMap() *Map {
	return &Map{byID: xsync.NewMap[Key, *Dialog]()}
}

// Insert registers a dialog under its current key.
func (m *Map) Insert(d *Dialog) {
	m.byID.Store(d.Key(), d)
}

// Rekey moves a dialog from the old key to its current Key().
func (m *Map) Rekey(old Key, d *Dialog) {
	m.byID.Delete(old)
	m.byID.Store(d.Key(), d)
}

// FindByMsg probes the map twice, per spec.md §4.8 "findDialogByMsg":
// first by (CallID, localTag) derived from the message's To-tag (for
// requests) or From-tag (for responses), then, if the message is an ACK,
// by (CallID, "").
func (m *Map) FindByMsg(msg *message.Message) (*Dialog, bool) {
	localTag := msg.To.Tag()
	if msg.IsResponse {
		localTag = msg.From.Tag()
	}
	if d, ok := m.byID.Load(Key{CallID: msg.CallID, LocalTag: localTag}); ok {
		return d, true
	}
	if !msg.IsResponse && msg.Method == message.ACK {
		return m.byID.Load(Key{CallID: msg.CallID, LocalTag: ""})
	}
	return nil, false
}

// Remove pulls a dialog out of the active map onto the dead list
// (spec.md §4.8 "dmRemoveDialog").
func (m *Map) Remove(d *Dialog) {
	m.byID.Delete(d.Key())
	m.deadMu.Lock()
	defer m.deadMu.Unlock()
	m.dead = append(m.dead, d)
}

// Sweep frees every dead-list entry whose SIP timers have all expired and
// whose associated L3 transaction has already been released, reported by
// the caller via txnReleased. It also returns the live dialogs IsStuck
// reports, leaving them in the map for the caller to handle.
func (m *Map) Sweep(timersExpired func(*Dialog) bool, txnReleased func(*Dialog) bool) (freed int, stuck []*Dialog) {
	m.deadMu.Lock()
	kept := m.dead[:0]
	for _, d := range m.dead {
		if timersExpired(d) && txnReleased(d) {
			freed++
			continue
		}
		kept = append(kept, d)
	}
	m.dead = kept
	m.deadMu.Unlock()

	m.byID.Range(func(_ Key, d *Dialog) bool {
		if d.IsStuck() {
			stuck = append(stuck, d)
		}
		return true
	})
	return freed, stuck
}

// Len reports the number of live dialogs.
func (m *Map) Len() int {
	return m.byID.Size()
}
