//go:build linux

package zcore

import (
	"math"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex operations this file uses, per futex(2). golang.org/x/sys/unix
// exposes the syscall number and a generic six-argument syscall wrapper but
// no higher-level Futex helper, so these are issued directly.
const (
	futexWait = 0
	futexWake = 1
)

// wakeGate is the Linux implementation of the OS-level wait/wake
// primitive, built directly on the futex syscall. It does not park on the
// logical task counter itself (an int64, which can't portably be
// reinterpreted as the unsigned 32-bit word a futex addresses); instead
// it is a free-standing generation counter, bumped by every notify, that
// idle workers block on alongside re-checking their real condition.
type wakeGate struct {
	word uint32
}

func newWakeGate() *wakeGate {
	return &wakeGate{}
}

// Load returns the current generation value.
func (g *wakeGate) Load() uint32 {
	return atomic.LoadUint32(&g.word)
}

// Wait blocks while the generation counter still equals expected. Callers
// must snapshot Load() before re-checking their own condition, then call
// Wait with that snapshot only if the condition still holds, preserving
// the happens-before relationship between a notifier's state mutation and
// the corresponding wake-up.
func (g *wakeGate) Wait(expected uint32) {
	// The kernel re-checks *addr == expected atomically at syscall entry,
	// so a notify that lands between our caller's condition check and
	// this call returns immediately rather than sleeping through it.
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&g.word)), futexWait, uintptr(expected), 0, 0, 0)
}

// NotifyOne bumps the generation counter and wakes at most one waiter.
func (g *wakeGate) NotifyOne() {
	atomic.AddUint32(&g.word, 1)
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&g.word)), futexWake, 1, 0, 0, 0)
}

// NotifyAll bumps the generation counter and wakes every waiter.
func (g *wakeGate) NotifyAll() {
	atomic.AddUint32(&g.word, 1)
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&g.word)), futexWake, uintptr(math.MaxInt32), 0, 0, 0)
}
