package dotnet

// ECMA-335 metadata constants. Layouts are documented in partition II of
// the standard; the table IDs below are the bit positions of the tables
// stream's 64-bit Valid mask (II.22).
const (
	// Magic number of the metadata root ("BSJB").
	metadataMagic = 0x424A5342

	// Fixed size of the CLI header (II.25.3.3).
	cliHeaderSize = 72

	// Fixed part of the metadata root, up to the version string (II.24.2.1).
	metadataRootSize = 16

	// Fixed size of the tables stream header (II.24.2.6).
	tildeHeaderSize = 24

	// Stream names are NUL-terminated within at most 32 bytes (II.24.2.2).
	streamNameSize = 32

	// Strings-heap entries longer than this are treated as corrupt.
	maxDotnetStringLength = 1024

	// Tables declaring more rows than this abort the tables pass.
	maxTableRows = 10000

	// GUID heap processing is capped at 16 entries (256 bytes).
	maxGUIDHeapBytes = 256

	// ELEMENT_TYPE_STRING, the only constant type extracted (II.23.1.16).
	elementTypeString = 0x0E
)

// Metadata table IDs, by Valid-mask bit position. The pointer tables
// (FieldPtr, MethodDefPtr, ParamPtr, EventPtr, PropertyPtr) only occur in
// unoptimized (#-) streams and are not part of ECMA-335's documented set,
// but they still occupy bits and must be stepped over.
const (
	tableModule                 = 0x00
	tableTypeRef                = 0x01
	tableTypeDef                = 0x02
	tableFieldPtr               = 0x03
	tableField                  = 0x04
	tableMethodDefPtr           = 0x05
	tableMethodDef              = 0x06
	tableParamPtr               = 0x07
	tableParam                  = 0x08
	tableInterfaceImpl          = 0x09
	tableMemberRef              = 0x0A
	tableConstant               = 0x0B
	tableCustomAttribute        = 0x0C
	tableFieldMarshal           = 0x0D
	tableDeclSecurity           = 0x0E
	tableClassLayout            = 0x0F
	tableFieldLayout            = 0x10
	tableStandAloneSig          = 0x11
	tableEventMap               = 0x12
	tableEventPtr               = 0x13
	tableEvent                  = 0x14
	tablePropertyMap            = 0x15
	tablePropertyPtr            = 0x16
	tableProperty               = 0x17
	tableMethodSemantics        = 0x18
	tableMethodImpl             = 0x19
	tableModuleRef              = 0x1A
	tableTypeSpec               = 0x1B
	tableImplMap                = 0x1C
	tableFieldRVA               = 0x1D
	tableEncLog                 = 0x1E
	tableEncMap                 = 0x1F
	tableAssembly               = 0x20
	tableAssemblyProcessor      = 0x21
	tableAssemblyOS             = 0x22
	tableAssemblyRef            = 0x23
	tableAssemblyRefProcessor   = 0x24
	tableAssemblyRefOS          = 0x25
	tableFile                   = 0x26
	tableExportedType           = 0x27
	tableManifestResource       = 0x28
	tableNestedClass            = 0x29
	tableGenericParam           = 0x2A
	tableMethodSpec             = 0x2B
	tableGenericParamConstraint = 0x2C
)

// Coded-index tags checked during the CustomAttribute cross-reference walk
// (II.24.2.6). Each tag identifies the target table of a coded index.
const (
	// HasCustomAttribute: tag value selecting the Assembly table.
	tagHasCAAssembly = 0x0E

	// CustomAttributeType: tag value selecting the MemberRef table.
	tagCATypeMemberRef = 0x03

	// MemberRefParent: tag value selecting the TypeRef table.
	tagMemberRefParentTypeRef = 0x01
)

// rowCounts holds the per-table row counts collected during pass 1, for
// the subset of tables that other tables' coded indices can target.
// Tables absent from the Valid mask stay at 0.
type rowCounts struct {
	module                 uint32
	typeRef                uint32
	typeDef                uint32
	field                  uint32
	methodDef              uint32
	param                  uint32
	interfaceImpl          uint32
	memberRef              uint32
	property               uint32
	event                  uint32
	standAloneSig          uint32
	moduleRef              uint32
	typeSpec               uint32
	assembly               uint32
	assemblyRef            uint32
	assemblyRefProcessor   uint32
	file                   uint32
	exportedType           uint32
	manifestResource       uint32
	genericParam           uint32
	genericParamConstraint uint32
	methodSpec             uint32
}

// indexSizes holds the byte width (2 or 4) of heap indices and of simple
// indices into specific tables. Heap widths come from the tables stream's
// HeapSizes flags; table widths are 4 once the table exceeds 0xFFFF rows.
type indexSizes struct {
	str  int64
	guid int64
	blob int64

	field                int64
	methodDef            int64
	param                int64
	typeDef              int64
	event                int64
	property             int64
	moduleRef            int64
	genericParam         int64
	assemblyRef          int64
	assemblyRefProcessor int64
}

func defaultIndexSizes() indexSizes {
	return indexSizes{
		str: 2, guid: 2, blob: 2,
		field: 2, methodDef: 2, param: 2, typeDef: 2, event: 2,
		property: 2, moduleRef: 2, genericParam: 2, assemblyRef: 2,
		assemblyRefProcessor: 2,
	}
}

// codedIndexWidth returns the byte width of a coded index that reserves
// tagBits discriminator bits and can target tables with the given row
// counts. Once the largest target no longer fits in the value bits of a
// 16-bit encoding, the column widens to 4 bytes (II.24.2.6).
func codedIndexWidth(tagBits uint, counts ...uint32) int64 {
	if maxRows(counts...) > 0xFFFF>>tagBits {
		return 4
	}
	return 2
}

func maxRows(counts ...uint32) uint32 {
	var biggest uint32
	for _, c := range counts {
		if c > biggest {
			biggest = c
		}
	}
	return biggest
}
