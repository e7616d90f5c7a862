package dotnet

// Report is the fact set extracted from one image. Fields that were never
// published stay at their zero value: nil pointers and nil slices mean
// "absent", while a non-nil empty slice means the corresponding decoder ran
// and found nothing. Callers rely on that distinction, so the parser always
// initializes a slice before walking the structure that fills it.
//
// String-typed facts may carry arbitrary bytes; they are raw heap contents,
// not guaranteed UTF-8.
type Report struct {
	IsDotNet     bool          `json:"is_dotnet"`
	Version      *string       `json:"version,omitempty"`
	ModuleName   *string       `json:"module_name,omitempty"`
	Streams      []Stream      `json:"streams,omitempty"`
	GUIDs        []string      `json:"guids,omitempty"`
	Resources    []Resource    `json:"resources,omitempty"`
	AssemblyRefs []AssemblyRef `json:"assembly_refs,omitempty"`
	Assembly     *Assembly     `json:"assembly,omitempty"`
	ModuleRefs   []string      `json:"modulerefs,omitempty"`
	UserStrings  []string      `json:"user_strings,omitempty"`
	TypeLib      *string       `json:"typelib,omitempty"`
	Constants    []string      `json:"constants,omitempty"`
	FieldOffsets []int64       `json:"field_offsets,omitempty"`
}

// Stream describes one metadata stream header. Offset is absolute within
// the image, not relative to the metadata root.
type Stream struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Size   uint32 `json:"size"`
}

// Version is the four-part assembly version number.
type Version struct {
	Major    uint16 `json:"major"`
	Minor    uint16 `json:"minor"`
	Build    uint16 `json:"build_number"`
	Revision uint16 `json:"revision_number"`
}

// Assembly is the defining assembly's identity.
type Assembly struct {
	Version Version `json:"version"`
	Name    *string `json:"name,omitempty"`
	Culture *string `json:"culture,omitempty"`
}

// AssemblyRef is one referenced assembly. PublicKeyOrToken holds the raw
// blob bytes when present and non-empty.
type AssemblyRef struct {
	Version          Version `json:"version"`
	PublicKeyOrToken *string `json:"public_key_or_token,omitempty"`
	Name             *string `json:"name,omitempty"`
}

// Resource is one manifest resource embedded in this file. Offset is the
// absolute file offset of the resource payload, past its length prefix.
type Resource struct {
	Offset int64   `json:"offset"`
	Length uint32  `json:"length"`
	Name   *string `json:"name,omitempty"`
}
