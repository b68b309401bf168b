//go:build !gokernel_freestanding

package context

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// switchCount lets hosted tests assert that a context switch occurred
// without a real architecture to switch registers on.
var switchCount atomic.Uint64

// SwitchCount reports how many times SwitchContext has run.
func SwitchCount() uint64 { return switchCount.Load() }

// SwitchContext is the hosted stand-in: there is no real stack to pivot
// to in a Go test binary, so it records the hand-off instead. It
// brackets that hand-off with a real signal-mask block/restore
// (RtSigprocmask), standing in for the interrupt disable/restore a
// ring-0 switch performs. gokernel/cpu's hosted DisableInterrupts/
// RestoreInterrupts do not use signal masks; they flip an atomic flag.
func SwitchContext(outgoing *StackPointer, incoming StackPointer, personality Personality) {
	var oldset unix.Sigset_t
	fullset := unix.Sigset_t{}
	for i := range fullset.Val {
		fullset.Val[i] = ^uint64(0)
	}
	_ = unix.RtSigprocmask(unix.SIG_SETMASK, &fullset, &oldset, unix.SizeofSigsetT)

	switchCount.Add(1)
	*outgoing = incoming

	_ = unix.RtSigprocmask(unix.SIG_SETMASK, &oldset, nil, unix.SizeofSigsetT)
}
