package unwind

import (
	"testing"

	"gokernel/task"
)

func TestPanicEntryBuildsOwnedPanicInfo(t *testing.T) {
	func() {
		defer func() {
			r := recover()
			kill := PanicEntry(r)
			if kill.Kind != task.KillPanic {
				t.Fatalf("kind = %v, want KillPanic", kill.Kind)
			}
			if kill.Panic.Message != "boom" {
				t.Fatalf("message = %q, want %q", kill.Panic.Message, "boom")
			}
		}()
		panic("boom")
	}()
}

func TestShouldRestartSuppressedForRequested(t *testing.T) {
	tk := task.New(1, "t")
	tk.MarkRunnable()
	tk.SetRestartInfo(&task.RestartInfo{Entry: func(any) int32 { return 0 }})

	if !ShouldRestart(tk, task.KillReason{Kind: task.KillPanic}) {
		t.Fatalf("restartable task with Panic kill should restart")
	}
	if ShouldRestart(tk, task.KillReason{Kind: task.KillRequested}) {
		t.Fatalf("restart must be suppressed for Requested kill")
	}
}

func TestShouldRestartFalseForNonRestartable(t *testing.T) {
	tk := task.New(2, "t")
	tk.MarkRunnable()
	if ShouldRestart(tk, task.KillReason{Kind: task.KillPanic}) {
		t.Fatalf("non-restartable task should not restart")
	}
}

func TestCaptureBacktraceNonEmpty(t *testing.T) {
	frames := CaptureBacktrace(0)
	if len(frames) == 0 {
		t.Fatalf("CaptureBacktrace returned no frames")
	}
}
