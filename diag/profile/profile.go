// Package profile samples the per-CPU scheduler's dispatch counts and
// the heap's size-class occupancy into a pprof-format profile (spec.md
// §4.J's deferred-interrupt mechanism is the intended driver: a
// low-priority periodic interrupt walks the running kernel's live state
// and snapshots it here, rather than this package polling anything
// itself), so a developer can point `go tool pprof` at the result and
// see where dispatches and live objects are concentrated.
//
// Grounded on applications/heap_eval/src/shbench.rs's occupancy
// reporting loop (original_source) for what to sample, and on
// github.com/google/pprof/profile's own Profile/Sample/Location/Function
// shape for how to report it; biscuit reserves this dependency without
// ever constructing a Profile by hand, so this is new territory rather
// than an adaptation of teacher code.
package profile

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"gokernel/mm/heap"
	"gokernel/sched"
)

const (
	unitCount = "count"
)

// functionTable hands out stable Location/Function IDs for a fixed set
// of named "locations" (CPU N, or size class N), since profile.Profile
// requires every Sample to reference a Location and every Location a
// Function.
type functionTable struct {
	functions []*profile.Function
	locations []*profile.Location
	byName    map[string]*profile.Location
}

func newFunctionTable() *functionTable {
	return &functionTable{byName: make(map[string]*profile.Location)}
}

func (ft *functionTable) locationFor(name string) *profile.Location {
	if loc, ok := ft.byName[name]; ok {
		return loc
	}
	id := uint64(len(ft.functions) + 1)
	fn := &profile.Function{ID: id, Name: name, SystemName: name}
	loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
	ft.functions = append(ft.functions, fn)
	ft.locations = append(ft.locations, loc)
	ft.byName[name] = loc
	return loc
}

// SchedulerSnapshot builds a pprof Profile with one "dispatches" sample
// per runqueue, labeled by CPU. The profile has a single sample type
// ("dispatches", "count") so it can be diffed across two captures with
// `go tool pprof -base`.
func SchedulerSnapshot(rqs []*sched.Runqueue) *profile.Profile {
	ft := newFunctionTable()
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "dispatches", Unit: unitCount}},
	}
	for _, rq := range rqs {
		loc := ft.locationFor(fmt.Sprintf("cpu%d", rq.CPU()))
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(rq.DispatchCount())},
			Label:    map[string][]string{"cpu": {fmt.Sprintf("%d", rq.CPU())}},
		})
	}
	p.Function = ft.functions
	p.Location = ft.locations
	return p
}

// HeapSnapshot builds a pprof Profile with one sample per (heap, size
// class) pair, carrying three values: the page counts of that class's
// empty, partial and full buckets. The three sample types let a single
// profile answer "how many pages are empty/partial/full" without needing
// three separate captures.
func HeapSnapshot(mh *heap.MultipleHeaps) *profile.Profile {
	ft := newFunctionTable()
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "empty_pages", Unit: unitCount},
			{Type: "partial_pages", Unit: unitCount},
			{Type: "full_pages", Unit: unitCount},
		},
	}
	for heapID, classes := range mh.Occupancy() {
		for class, occ := range classes {
			loc := ft.locationFor(fmt.Sprintf("heap%d/class%d", heapID, class))
			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{int64(occ.Empty), int64(occ.Partial), int64(occ.Full)},
				Label: map[string][]string{
					"heap":  {fmt.Sprintf("%d", heapID)},
					"class": {fmt.Sprintf("%d", class)},
				},
			})
		}
	}
	p.Function = ft.functions
	p.Location = ft.locations
	return p
}

// Write validates and serializes p (gzip-compressed protobuf, the
// format `go tool pprof` expects) to w.
func Write(p *profile.Profile, w io.Writer) error {
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("diag/profile: invalid profile: %w", err)
	}
	return p.Write(w)
}
