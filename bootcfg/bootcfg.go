// Package bootcfg assembles the two inputs a freshly booted kernel needs
// before anything else can run: the bootloader-supplied physical memory
// map (spec.md §6) and a kernel command-line-style set of `key=value`
// tokens selecting runtime policy (scheduler choice, heap size-class
// overrides, deferred-task stack size).
//
// Grounded on the teacher's chentry.go/biscuit boot-parameter assembly
// conventions (biscuit/src/kernel/chentry.go) for the key=value/strconv
// idiom, and on Theseus's nano_core boot-info handoff
// (original_source/kernel/frame_allocator/src/static_array_rb_tree.rs's
// own memory-map consumer) for the Usable/Reserved region split this
// package feeds into gokernel/mm/frame and gokernel/mm/page.
package bootcfg

import (
	"fmt"
	"strconv"
	"strings"

	"gokernel/kernelerr"
	"gokernel/mm/frame"
	"gokernel/mm/heap"
	"gokernel/mm/page"
	"gokernel/mm/paging"
	"gokernel/sched"
	"gokernel/task/spawn"
)

// RegionKind classifies one entry of the bootloader's memory map, the
// E820-style "kind" spec.md §6 describes: Usable is available for the
// frame/page allocators to hand out, anything else is Reserved.
type RegionKind int

const (
	Usable RegionKind = iota
	Reserved
	ACPIReclaimable
	ACPINVS
	BadMemory
)

// MemoryMapEntry is one bootloader-reported physical range.
type MemoryMapEntry struct {
	Start uintptr
	Length uint64
	Kind   RegionKind
}

func (e MemoryMapEntry) end() frame.Number {
	return frame.FromAddr(e.Start + uintptr(e.Length) - 1)
}

// ReservedExtra names an additional physical range the bootloader's raw
// memory map does not itself mark Reserved but that must not be handed
// out anyway: the kernel image, the bootloader's own info structure, and
// any loaded boot modules (initrd-equivalents), per spec.md §6.
type ReservedExtra struct {
	Name  string
	Start uintptr
	Length uint64
}

// MemoryMap is the raw boot-time input: the bootloader's entries plus
// the extra reservations the kernel itself knows about.
type MemoryMap struct {
	Entries []MemoryMapEntry
	Extra   []ReservedExtra
}

// FrameRegions splits mm into the Free/Reserved frame.Region lists
// frame.New expects. A Usable entry is Free; everything else (including
// every ReservedExtra span, which frequently carves a hole out of a
// Usable entry — the kernel image living inside a larger usable region
// is the common case) is Reserved.
func (mm MemoryMap) FrameRegions() (free, reserved []frame.Region) {
	for _, e := range mm.Entries {
		start := frame.FromAddr(e.Start)
		r := frame.Region{Range: frame.Range{Start: start, End: e.end()}}
		if e.Kind == Usable {
			r.Type = frame.Free
			free = append(free, r)
		} else {
			r.Type = frame.Reserved
			reserved = append(reserved, r)
		}
	}
	for _, x := range mm.Extra {
		start := frame.FromAddr(x.Start)
		end := frame.FromAddr(x.Start + uintptr(x.Length) - 1)
		reserved = append(reserved, frame.Region{
			Range: frame.Range{Start: start, End: end},
			Type:  frame.Reserved,
		})
	}
	return free, reserved
}

// PageRegions mirrors FrameRegions for the virtual-address-space
// allocator: a hosted/identity-mapped kernel reuses the same physical
// layout as its initial virtual layout.
func (mm MemoryMap) PageRegions() (free, reserved []page.Region) {
	for _, e := range mm.Entries {
		r := page.Region{
			Range: page.Range{Start: page.Number(frame.FromAddr(e.Start)), End: page.Number(e.end())},
		}
		if e.Kind == Usable {
			r.Type = page.Free
			free = append(free, r)
		} else {
			r.Type = page.Reserved
			reserved = append(reserved, r)
		}
	}
	for _, x := range mm.Extra {
		start := page.Number(frame.FromAddr(x.Start))
		end := page.Number(frame.FromAddr(x.Start + uintptr(x.Length) - 1))
		reserved = append(reserved, page.Region{
			Range: page.Range{Start: start, End: end},
			Type:  page.Reserved,
		})
	}
	return free, reserved
}

// SchedulerPolicy names the scheduler policy a Config selects, per
// spec.md §9's pluggable-policy design.
type SchedulerPolicy string

const (
	PolicyRoundRobin   SchedulerPolicy = "roundrobin"
	PolicyPriorityEpoch SchedulerPolicy = "priorityepoch"
)

// Config is the parsed result of the kernel command line: policy
// selection and the handful of tunables spec.md leaves
// implementation-defined (heap size-class page budget, deferred-task
// stack size).
type Config struct {
	SchedPolicy        SchedulerPolicy
	DeferredStackBytes int
	HeapClassPageBudget map[int]int
}

// defaultDeferredStackBytes matches task/spawn.DefaultStackSize, kept as
// a literal so DefaultConfig doesn't depend on Boot ever having been
// called to know its own default.
const defaultDeferredStackBytes = 16 * 1024

// DefaultConfig is what the kernel boots with if the command line
// supplies no overrides.
func DefaultConfig() Config {
	return Config{
		SchedPolicy:        PolicyRoundRobin,
		DeferredStackBytes: defaultDeferredStackBytes,
		HeapClassPageBudget: map[int]int{},
	}
}

// ParseCmdline parses a kernel command-line-style string: whitespace-
// separated `key=value` tokens, matching the conventions the teacher's
// build tooling uses for passing parameters into the kernel image.
// Recognized keys:
//
//	sched=roundrobin|priorityepoch
//	deferred_stack=<bytes>
//	heap_class_budget.<class>=<pages>
//
// Unrecognized keys are ignored, matching how a real kernel command line
// tolerates tokens meant for other subsystems.
func ParseCmdline(line string) (Config, error) {
	cfg := DefaultConfig()
	for _, tok := range strings.Fields(line) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		switch {
		case key == "sched":
			switch SchedulerPolicy(value) {
			case PolicyRoundRobin, PolicyPriorityEpoch:
				cfg.SchedPolicy = SchedulerPolicy(value)
			default:
				return Config{}, fmt.Errorf("bootcfg: unknown sched policy %q: %w", value, kernelerr.ErrInvalidLayout)
			}
		case key == "deferred_stack":
			n, err := strconv.ParseUint(value, 0, 64)
			if err != nil {
				return Config{}, fmt.Errorf("bootcfg: deferred_stack=%q: %w", value, kernelerr.ErrInvalidLayout)
			}
			cfg.DeferredStackBytes = int(n)
		case strings.HasPrefix(key, "heap_class_budget."):
			classStr := strings.TrimPrefix(key, "heap_class_budget.")
			class, err := strconv.Atoi(classStr)
			if err != nil {
				return Config{}, fmt.Errorf("bootcfg: %s: bad class index: %w", key, kernelerr.ErrInvalidLayout)
			}
			pages, err := strconv.Atoi(value)
			if err != nil {
				return Config{}, fmt.Errorf("bootcfg: %s=%q: %w", key, value, kernelerr.ErrInvalidLayout)
			}
			cfg.HeapClassPageBudget[class] = pages
		}
	}
	return cfg, nil
}

// Booted is the set of runtime components Boot wires from a parsed
// Config: the scheduler policy it selects, the stack allocator it sizes,
// and the heap it caps, per the kernel command-line tokens ParseCmdline
// recognizes.
type Booted struct {
	Policy         sched.Policy
	StackAllocator *spawn.StackAllocator
	Heaps          *heap.MultipleHeaps
}

// Boot turns a parsed Config into the live runtime components a kernel
// entrypoint dispatches into: the scheduler policy cfg.SchedPolicy names,
// a task/spawn.StackAllocator sized to cfg.DeferredStackBytes, and an
// mm/heap.MultipleHeaps whose size classes are capped by
// cfg.HeapClassPageBudget. numHeaps is the number of per-CPU heaps to
// build (normally the CPU count the bootloader reported).
func Boot(cfg Config, pages *page.Allocator, mapper *paging.Mapper, numHeaps int) (Booted, error) {
	var policy sched.Policy
	switch cfg.SchedPolicy {
	case PolicyRoundRobin:
		policy = sched.NewRoundRobin()
	case PolicyPriorityEpoch:
		policy = sched.NewPriorityEpoch()
	default:
		return Booted{}, fmt.Errorf("bootcfg: boot with sched policy %q: %w", cfg.SchedPolicy, kernelerr.ErrInvalidLayout)
	}

	stackAlloc := spawn.NewStackAllocator(pages, mapper, cfg.DeferredStackBytes)

	heaps := heap.New(numHeaps, pages, mapper)
	heaps.SetClassPageBudget(cfg.HeapClassPageBudget)

	return Booted{Policy: policy, StackAllocator: stackAlloc, Heaps: heaps}, nil
}
