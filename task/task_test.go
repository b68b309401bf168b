package task

import (
	"sync"
	"testing"
)

func TestRunStateTransitions(t *testing.T) {
	tk := New(1, "t")
	if tk.State() != Initing {
		t.Fatalf("initial state = %s, want Initing", tk.State())
	}
	if !tk.MarkRunnable() {
		t.Fatalf("MarkRunnable from Initing failed")
	}
	if tk.MarkRunnable() {
		t.Fatalf("second MarkRunnable unexpectedly succeeded")
	}
	if !tk.Block() {
		t.Fatalf("Block from Runnable failed")
	}
	if tk.Block() {
		t.Fatalf("Block from Blocked unexpectedly succeeded")
	}
	if !tk.Unblock() {
		t.Fatalf("Unblock from Blocked failed")
	}
	if !tk.Exit(CompletedWith(0)) {
		t.Fatalf("Exit failed")
	}
	if tk.Exit(CompletedWith(1)) {
		t.Fatalf("second Exit unexpectedly succeeded")
	}
	if tk.State() != Exited {
		t.Fatalf("state after Exit = %s, want Exited", tk.State())
	}
	if tk.Unblock() {
		t.Fatalf("Unblock after Exited unexpectedly succeeded")
	}
}

func TestTakeExitValueIsOneShot(t *testing.T) {
	tk := New(1, "t")
	tk.MarkRunnable()
	if _, ok := tk.TakeExitValue(); ok {
		t.Fatalf("TakeExitValue before Exit unexpectedly succeeded")
	}
	tk.Exit(CompletedWith(42))

	r1, ok1 := tk.TakeExitValue()
	if !ok1 || r1.Value != 42 {
		t.Fatalf("first TakeExitValue = %+v, %v; want Completed(42), true", r1, ok1)
	}
	if _, ok2 := tk.TakeExitValue(); ok2 {
		t.Fatalf("second TakeExitValue unexpectedly succeeded")
	}

	// Join is not consuming and may be called repeatedly.
	if got := tk.Join(); got.Value != 42 {
		t.Fatalf("Join() = %+v, want Completed(42)", got)
	}
	if got := tk.Join(); got.Value != 42 {
		t.Fatalf("second Join() = %+v, want Completed(42)", got)
	}
}

func TestTakeExitValueConcurrentOnlyOneWinner(t *testing.T) {
	tk := New(1, "t")
	tk.MarkRunnable()
	tk.Exit(CompletedWith(7))

	const n = 64
	var wg sync.WaitGroup
	wins := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := tk.TakeExitValue()
			wins[i] = ok
		}(i)
	}
	wg.Wait()

	count := 0
	for _, w := range wins {
		if w {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("winners = %d, want exactly 1", count)
	}
}

// TestOnRunQueueExactlyOnce covers spec.md §8.6's runqueue invariant at
// the task level: a concurrent TryEnqueue race has exactly one winner,
// regardless of how many goroutines observe the task as eligible for
// re-enqueue at the same time.
func TestOnRunQueueExactlyOnce(t *testing.T) {
	tk := New(1, "t")
	tk.MarkRunnable()
	tk.Block()

	const n = 32
	var wg sync.WaitGroup
	winners := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk.Unblock()
			winners[i] = tk.TryEnqueue()
		}(i)
	}
	wg.Wait()

	count := 0
	for _, w := range winners {
		if w {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("TryEnqueue winners = %d, want exactly 1", count)
	}
	if !tk.OnRunQueue() {
		t.Fatalf("OnRunQueue() = false after a winning TryEnqueue")
	}

	tk.MarkDequeued()
	if tk.OnRunQueue() {
		t.Fatalf("OnRunQueue() = true after MarkDequeued")
	}
	if !tk.TryEnqueue() {
		t.Fatalf("TryEnqueue after MarkDequeued should succeed")
	}
}

func TestEnvAndCwd(t *testing.T) {
	tk := New(1, "t")
	if tk.Getcwd() != "/" {
		t.Fatalf("default cwd = %q, want /", tk.Getcwd())
	}
	tk.Chdir("/home")
	if tk.Getcwd() != "/home" {
		t.Fatalf("cwd after Chdir = %q, want /home", tk.Getcwd())
	}
	tk.Setenv("PATH", "/bin")
	if v, ok := tk.Getenv("PATH"); !ok || v != "/bin" {
		t.Fatalf("Getenv(PATH) = %q, %v; want /bin, true", v, ok)
	}
	tk.Unsetenv("PATH")
	if _, ok := tk.Getenv("PATH"); ok {
		t.Fatalf("Getenv(PATH) after Unsetenv unexpectedly found")
	}
}
