// Package faults rebuilds the charger's fault lists from the single and
// multi frame answers to a fault request.
package faults

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/farouk15160/evocharger/internal/charger"
)

var (
	ErrFrameOutOfRange  = errors.New("fault frame number outside 1..total")
	ErrUnknownFrameType = errors.New("fault frame type not recognized")
)

// Entry is one stored fault.
type Entry struct {
	Code         uint8                `json:"code"`
	Name         string               `json:"name"`
	FailureLevel charger.FailureLevel `json:"failure_level"`
	Occurrence   uint8                `json:"occurrence"`
	FirstTimeH   uint16               `json:"first_time_h"`
	LastTimeH    uint16               `json:"last_time_h"`
}

func entryOf(f charger.Fault) Entry {
	return Entry{
		Code:         f.Code,
		Name:         f.Name(),
		FailureLevel: f.FailureLevel,
		Occurrence:   f.Occurrence,
		FirstTimeH:   f.FirstTimeH,
		LastTimeH:    f.LastTimeH,
	}
}

// List is a complete active or passive fault list.
type List struct {
	Active  bool    `json:"active"`
	Entries []Entry `json:"entries"`
}

// Kind is "active" or "inactive".
func (l List) Kind() string {
	if l.Active {
		return "active"
	}
	return "inactive"
}

// HasHard reports whether any entry is a hard failure.
func (l List) HasHard() bool {
	for _, e := range l.Entries {
		if e.FailureLevel == charger.FailureHard {
			return true
		}
	}
	return false
}

type assembly struct {
	total  uint8
	frames map[uint8]charger.Fault
}

func (a *assembly) reset(total uint8) {
	a.total = total
	a.frames = make(map[uint8]charger.Fault, total)
}

func (a *assembly) complete() bool {
	return a.total > 0 && len(a.frames) == int(a.total)
}

func (a *assembly) list(active bool) List {
	numbers := make([]int, 0, len(a.frames))
	for n := range a.frames {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	l := List{Active: active, Entries: make([]Entry, 0, len(numbers))}
	for _, n := range numbers {
		l.Entries = append(l.Entries, entryOf(a.frames[uint8(n)]))
	}
	return l
}

// Aggregator keeps one assembly per list. It is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	pending  [2]assembly
	last     [2]List
	haveLast [2]bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func slot(active bool) int {
	if active {
		return 1
	}
	return 0
}

// Add feeds one decoded fault frame. It returns the list and true once the
// list the frame belongs to is complete.
//
// A no-fault frame completes an empty list and a single frame a list of one.
// Multi frames are collected by frame number 1..total; a frame announcing a
// different total, or frame 1 arriving again, starts a new assembly.
func (a *Aggregator) Add(f charger.Fault) (List, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := slot(f.Active)
	p := &a.pending[i]

	switch {
	case f.NoFault:
		p.reset(0)
		return a.finish(i, List{Active: f.Active, Entries: []Entry{}}), true, nil

	case f.FrameType == charger.FrameSingle:
		p.reset(0)
		return a.finish(i, List{Active: f.Active, Entries: []Entry{entryOf(f)}}), true, nil

	case f.FrameType == charger.FrameMulti:
		if f.TotalErrors == 0 || f.FrameNumber == 0 || f.FrameNumber > f.TotalErrors {
			return List{}, false, fmt.Errorf("frame %d of %d: %w", f.FrameNumber, f.TotalErrors, ErrFrameOutOfRange)
		}
		if p.total != f.TotalErrors || p.frames == nil {
			p.reset(f.TotalErrors)
		} else if _, seen := p.frames[f.FrameNumber]; seen && f.FrameNumber == 1 {
			p.reset(f.TotalErrors)
		}
		p.frames[f.FrameNumber] = f
		if !p.complete() {
			return List{}, false, nil
		}
		l := p.list(f.Active)
		p.reset(0)
		return a.finish(i, l), true, nil
	}
	return List{}, false, fmt.Errorf("%s: %w", f.FrameType, ErrUnknownFrameType)
}

func (a *Aggregator) finish(i int, l List) List {
	a.last[i] = l
	a.haveLast[i] = true
	return l
}

// Last returns the most recent complete list of the given kind.
func (a *Aggregator) Last(active bool) (List, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := slot(active)
	return a.last[i], a.haveLast[i]
}

// Pending reports how many frames of an unfinished multi frame list are held.
func (a *Aggregator) Pending(active bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending[slot(active)].frames)
}

// Reset drops every partial assembly, e.g. before a new request is sent.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.pending {
		a.pending[i].reset(0)
	}
}
