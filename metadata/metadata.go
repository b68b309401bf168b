// Package metadata models the loaded-crate metadata of spec.md §6:
// the description of a loadable crate object consulted by symbol
// resolution and by gokernel/unwind when walking frames. Field names and
// shapes match spec.md §6 exactly, since "field order and naming are
// part of the interface."
//
// Grounded on biscuit's ELF-section bookkeeping for the section-index
// map shape, and on gopher-os's kernel-image section classification for
// the Text/Rodata/Data/Bss/Tls* kind split.
package metadata

import "github.com/ianlancetaylor/demangle"

// SectionKind classifies a loaded section, per spec.md §6.
type SectionKind int

const (
	Text SectionKind = iota
	Rodata
	Data
	Bss
	TlsData
	TlsBss
	Cls
	GccExceptTable
	EhFrame
)

// sectionKindNames is the section-kind-to-name mapping spec.md §6 calls
// for (".text", ".rodata", ..., ".eh_frame", ".gcc_except_table").
var sectionKindNames = map[SectionKind]string{
	Text:           ".text",
	Rodata:         ".rodata",
	Data:           ".data",
	Bss:            ".bss",
	TlsData:        ".tdata",
	TlsBss:         ".tbss",
	Cls:            ".cls",
	GccExceptTable: ".gcc_except_table",
	EhFrame:        ".eh_frame",
}

func (k SectionKind) String() string {
	if name, ok := sectionKindNames[k]; ok {
		return name
	}
	return "?"
}

// CPULocalFlag is the raw ELF section-header sh_flags bit marking a
// section as holding CPU-local (.cls) data, per spec.md §6's "section
// flag for CPU-local data (a specific bit value)" and grounded on
// original_source/kernel/crate_metadata_serde/src/lib.rs's
// CLS_SECTION_FLAG. A crate loader tests a raw section header against
// this flag to decide whether to classify the section's Kind as Cls
// before ever building a Section value; HasCPULocalFlag is that test.
const CPULocalFlag = 0x100000

// HasCPULocalFlag reports whether a raw ELF section-header sh_flags
// value marks the section as CPU-local, i.e. whether a crate loader
// parsing that header should classify the resulting Section's Kind as
// Cls.
func HasCPULocalFlag(shFlags uint64) bool {
	return shFlags&CPULocalFlag != 0
}

// Section describes one section of a loaded crate object.
type Section struct {
	Name              string
	Kind              SectionKind
	IsGlobal          bool
	VirtualAddress    uintptr
	MappedPagesOffset uintptr
	Size              uint64
}

// DemangledName returns Name run through a Rust/C++ symbol demangler,
// for panic backtraces and the mod_mgmt-style symbol index. Names that
// are not mangled (or not recognized) are returned unchanged.
func (s *Section) DemangledName() string {
	return demangle.Filter(s.Name)
}

// CrateMetadata is one loaded crate object's full description.
type CrateMetadata struct {
	Name string

	// Sections maps section index to its description.
	Sections map[int]*Section

	// Global, TLS, CPULocal, and DataBss are the sets of section indices
	// classified accordingly, per spec.md §6.
	Global   map[int]struct{}
	TLS      map[int]struct{}
	CPULocal map[int]struct{}
	DataBss  map[int]struct{}

	// InitSymbols maps assembler/linker init-symbol names to their
	// resolved addresses.
	InitSymbols map[string]uintptr
}

// New constructs an empty CrateMetadata for a crate named name.
func New(name string) *CrateMetadata {
	return &CrateMetadata{
		Name:        name,
		Sections:    make(map[int]*Section),
		Global:      make(map[int]struct{}),
		TLS:         make(map[int]struct{}),
		CPULocal:    make(map[int]struct{}),
		DataBss:     make(map[int]struct{}),
		InitSymbols: make(map[string]uintptr),
	}
}

// AddSection records a section at the given index and classifies it
// into the Global/TLS/CPULocal/DataBss sets based on its kind.
func (c *CrateMetadata) AddSection(index int, s *Section) {
	c.Sections[index] = s
	if s.IsGlobal {
		c.Global[index] = struct{}{}
	}
	switch s.Kind {
	case TlsData, TlsBss:
		c.TLS[index] = struct{}{}
	case Cls:
		c.CPULocal[index] = struct{}{}
	case Data, Bss:
		c.DataBss[index] = struct{}{}
	}
}

// SectionContaining returns the section whose virtual-address range
// contains addr, if any. Used by gokernel/unwind to classify a faulting
// or return address against the loaded crate's layout.
func (c *CrateMetadata) SectionContaining(addr uintptr) (*Section, bool) {
	for _, s := range c.Sections {
		if addr >= s.VirtualAddress && addr < s.VirtualAddress+uintptr(s.Size) {
			return s, true
		}
	}
	return nil, false
}
