package dotnet

import (
	"github.com/picklover/InteYara/dotnet/internal/arena"
)

// rvaResolver maps relative virtual addresses to file offsets, reporting
// -1 for addresses no section covers.
type rvaResolver interface {
	RVAToOffset(rva uint32) int64
}

// tableParser walks the #~ stream's table region. The two passes share
// the index widths derived from pass 1; pass 2 additionally records the
// placement of the TypeRef and MemberRef tables so the CustomAttribute
// handler can chase coded indices back through them.
type tableParser struct {
	img          *arena.Image
	pe           rvaResolver
	set          streamSet
	resourceBase int64

	rows rowCounts
	s    indexSizes

	typeRefBase       int64
	typeRefRowSize    int64
	typeRefScopeWidth int64

	memberRefBase       int64
	memberRefRowSize    int64
	memberRefClassWidth int64

	rep *Report
}

// parseTables decodes the tables stream and publishes everything it can
// into rep. Facts already published survive a truncated or hostile
// stream; the parser stops quietly instead of unwinding.
func parseTables(img *arena.Image, pe rvaResolver, set streamSet, resourceBase int64, rep *Report) {
	// The tables reference the strings and blob heaps throughout, so all
	// three streams have to be present.
	if set.tilde == nil || set.strings == nil || set.blob == nil {
		return
	}
	p := &tableParser{
		img:          img,
		pe:           pe,
		set:          set,
		resourceBase: resourceBase,
		rep:          rep,
	}

	tildeOff := set.tilde.offset
	if !img.Fits(tildeOff, tildeHeaderSize) {
		return
	}
	heapSizes, _ := img.U8(tildeOff + 6)
	valid, _ := img.U64(tildeOff + 8)

	// Pass 1: row counts, one u32 per set Valid bit, ascending.
	var counts [64]uint32
	off := tildeOff + tildeHeaderSize
	for bit := 0; bit < 64; bit++ {
		if valid&(1<<bit) == 0 {
			continue
		}
		n, ok := img.U32(off)
		if !ok {
			return
		}
		counts[bit] = n
		p.recordRowCount(bit, n)
		off += 4
	}
	p.s = p.resolveIndexSizes(heapSizes)

	// Pass 2: rows follow the count words immediately.
	p.walkRows(valid, counts, off)
}

func (p *tableParser) recordRowCount(bit int, n uint32) {
	switch bit {
	case tableModule:
		p.rows.module = n
	case tableTypeRef:
		p.rows.typeRef = n
	case tableTypeDef:
		p.rows.typeDef = n
	case tableField:
		p.rows.field = n
	case tableMethodDef:
		p.rows.methodDef = n
	case tableParam:
		p.rows.param = n
	case tableInterfaceImpl:
		p.rows.interfaceImpl = n
	case tableMemberRef:
		p.rows.memberRef = n
	case tableProperty:
		p.rows.property = n
	case tableEvent:
		p.rows.event = n
	case tableStandAloneSig:
		p.rows.standAloneSig = n
	case tableModuleRef:
		p.rows.moduleRef = n
	case tableTypeSpec:
		p.rows.typeSpec = n
	case tableAssembly:
		p.rows.assembly = n
	case tableAssemblyRef:
		p.rows.assemblyRef = n
	case tableAssemblyRefProcessor:
		p.rows.assemblyRefProcessor = n
	case tableFile:
		p.rows.file = n
	case tableExportedType:
		p.rows.exportedType = n
	case tableManifestResource:
		p.rows.manifestResource = n
	case tableGenericParam:
		p.rows.genericParam = n
	case tableGenericParamConstraint:
		p.rows.genericParamConstraint = n
	case tableMethodSpec:
		p.rows.methodSpec = n
	}
}

func (p *tableParser) resolveIndexSizes(heapSizes uint8) indexSizes {
	s := defaultIndexSizes()
	if heapSizes&0x01 != 0 {
		s.str = 4
	}
	if heapSizes&0x02 != 0 {
		s.guid = 4
	}
	if heapSizes&0x04 != 0 {
		s.blob = 4
	}
	wide := func(n uint32) int64 {
		if n > 0xFFFF {
			return 4
		}
		return 2
	}
	s.field = wide(p.rows.field)
	s.methodDef = wide(p.rows.methodDef)
	s.param = wide(p.rows.param)
	s.typeDef = wide(p.rows.typeDef)
	s.event = wide(p.rows.event)
	s.property = wide(p.rows.property)
	s.moduleRef = wide(p.rows.moduleRef)
	s.genericParam = wide(p.rows.genericParam)
	s.assemblyRef = wide(p.rows.assemblyRef)
	s.assemblyRefProcessor = wide(p.rows.assemblyRefProcessor)
	return s
}

// walkRows steps through every table the Valid mask declares, extracting
// from the tables the report cares about and skipping the rest by their
// computed row sizes. An unknown table bit ends the walk: row sizes past
// it cannot be known, so nothing after it is reachable.
func (p *tableParser) walkRows(valid uint64, counts [64]uint32, off int64) {
	r := &p.rows
	s := &p.s

	for bit := 0; bit < 64; bit++ {
		if valid&(1<<bit) == 0 {
			continue
		}
		numRows := counts[bit]
		if numRows > maxTableRows {
			return
		}

		var rowSize int64
		switch bit {
		case tableModule:
			rowSize = 2 + s.str + 3*s.guid
			p.extractModule(off, numRows, rowSize)
		case tableTypeRef:
			p.typeRefScopeWidth = codedIndexWidth(2,
				r.module, r.moduleRef, r.assemblyRef, r.typeRef)
			rowSize = p.typeRefScopeWidth + 2*s.str
			p.typeRefBase = off
			p.typeRefRowSize = rowSize
		case tableTypeDef:
			rowSize = 4 + 2*s.str +
				codedIndexWidth(2, r.typeDef, r.typeRef, r.typeSpec) +
				s.field + s.methodDef
		case tableFieldPtr:
			rowSize = s.field
		case tableField:
			rowSize = 2 + s.str + s.blob
		case tableMethodDefPtr:
			rowSize = s.methodDef
		case tableMethodDef:
			rowSize = 8 + s.str + s.blob + s.param
		case tableParamPtr:
			rowSize = s.param
		case tableParam:
			rowSize = 4 + s.str
		case tableInterfaceImpl:
			rowSize = s.typeDef +
				codedIndexWidth(2, r.typeDef, r.typeRef, r.typeSpec)
		case tableMemberRef:
			p.memberRefClassWidth = codedIndexWidth(3,
				r.methodDef, r.moduleRef, r.typeRef, r.typeSpec)
			rowSize = p.memberRefClassWidth + s.str + s.blob
			p.memberRefBase = off
			p.memberRefRowSize = rowSize
		case tableConstant:
			parentWidth := codedIndexWidth(2, r.param, r.field, r.property)
			rowSize = 2 + parentWidth + s.blob
			p.extractConstants(off, numRows, rowSize, parentWidth)
		case tableCustomAttribute:
			parentWidth := codedIndexWidth(5,
				r.module, r.typeRef, r.typeDef, r.field, r.methodDef,
				r.param, r.interfaceImpl, r.memberRef, r.property,
				r.event, r.standAloneSig, r.moduleRef, r.typeSpec,
				r.assembly, r.assemblyRef, r.file, r.exportedType,
				r.manifestResource, r.genericParam,
				r.genericParamConstraint, r.methodSpec)
			typeWidth := codedIndexWidth(3, r.methodDef, r.memberRef)
			rowSize = parentWidth + typeWidth + s.blob
			p.extractTypeLib(off, numRows, rowSize, parentWidth, typeWidth)
		case tableFieldMarshal:
			rowSize = codedIndexWidth(1, r.field, r.param) + s.blob
		case tableDeclSecurity:
			rowSize = 2 +
				codedIndexWidth(2, r.typeDef, r.methodDef, r.assembly) +
				s.blob
		case tableClassLayout:
			rowSize = 6 + s.typeDef
		case tableFieldLayout:
			rowSize = 4 + s.field
		case tableStandAloneSig:
			rowSize = s.blob
		case tableEventMap:
			rowSize = s.typeDef + s.event
		case tableEventPtr:
			rowSize = s.event
		case tableEvent:
			rowSize = 2 + s.str +
				codedIndexWidth(2, r.typeDef, r.typeRef, r.typeSpec)
		case tablePropertyMap:
			rowSize = s.typeDef + s.property
		case tablePropertyPtr:
			rowSize = s.property
		case tableProperty:
			rowSize = 2 + s.str + s.blob
		case tableMethodSemantics:
			rowSize = 2 + s.methodDef + codedIndexWidth(1, r.event, r.property)
		case tableMethodImpl:
			rowSize = s.typeDef + 2*codedIndexWidth(1, r.methodDef, r.memberRef)
		case tableModuleRef:
			rowSize = s.str
			p.extractModuleRefs(off, numRows, rowSize)
		case tableTypeSpec:
			rowSize = s.blob
		case tableImplMap:
			rowSize = 2 + codedIndexWidth(1, r.field, r.methodDef) +
				s.str + s.moduleRef
		case tableFieldRVA:
			rowSize = 4 + s.field
			p.extractFieldOffsets(off, numRows, rowSize)
		case tableEncLog:
			rowSize = 8
		case tableEncMap:
			rowSize = 4
		case tableAssembly:
			rowSize = 16 + s.blob + 2*s.str
			p.extractAssembly(off, numRows, rowSize)
		case tableAssemblyProcessor:
			rowSize = 4
		case tableAssemblyOS:
			rowSize = 12
		case tableAssemblyRef:
			rowSize = 12 + 2*s.blob + 2*s.str
			p.extractAssemblyRefs(off, numRows, rowSize)
		case tableAssemblyRefProcessor:
			rowSize = 4 + s.assemblyRefProcessor
		case tableAssemblyRefOS:
			rowSize = 12 + s.assemblyRef
		case tableFile:
			rowSize = 4 + s.str + s.blob
		case tableExportedType:
			rowSize = 8 + 2*s.str +
				codedIndexWidth(2, r.file, r.assemblyRef, r.exportedType)
		case tableManifestResource:
			implWidth := codedIndexWidth(2, r.file, r.assemblyRef)
			rowSize = 8 + s.str + implWidth
			p.extractResources(off, numRows, rowSize, implWidth)
		case tableNestedClass:
			rowSize = 2 * s.typeDef
		case tableGenericParam:
			rowSize = 4 + codedIndexWidth(1, r.typeDef, r.methodDef) + s.str
		case tableMethodSpec:
			rowSize = codedIndexWidth(1, r.methodDef, r.memberRef) + s.blob
		case tableGenericParamConstraint:
			rowSize = s.genericParam +
				codedIndexWidth(2, r.typeDef, r.typeRef, r.typeSpec)
		default:
			return
		}

		off += rowSize * int64(numRows)
	}
}

func readIndex(img *arena.Image, off, width int64) (uint32, bool) {
	if width == 4 {
		return img.U32(off)
	}
	v, ok := img.U16(off)
	return uint32(v), ok
}

func (p *tableParser) heapString(index uint32) (string, bool) {
	if p.set.strings == nil {
		return "", false
	}
	return stringFromHeap(p.img, p.set.strings.offset, index)
}

func (p *tableParser) extractModule(off int64, numRows uint32, rowSize int64) {
	if numRows == 0 || !p.img.Fits(off, rowSize) {
		return
	}
	index, ok := readIndex(p.img, off+2, p.s.str)
	if !ok {
		return
	}
	if name, ok := p.heapString(index); ok {
		p.rep.ModuleName = &name
	}
}

func (p *tableParser) extractConstants(off int64, numRows uint32, rowSize, parentWidth int64) {
	if p.rep.Constants == nil {
		p.rep.Constants = []string{}
	}
	if p.set.blob == nil {
		return
	}
	for i := uint32(0); i < numRows; i++ {
		row := off + int64(i)*rowSize
		if !p.img.Fits(row, rowSize) {
			return
		}
		typ, _ := p.img.U8(row)
		if typ != elementTypeString {
			continue
		}
		index, _ := readIndex(p.img, row+2+parentWidth, p.s.blob)
		blobOff := p.set.blob.offset + int64(index)
		entry := parseBlobEntry(p.img, blobOff)
		valOff := blobOff + int64(entry.Size)
		if entry.Size == 0 || !p.img.Fits(valOff, int64(entry.Length)+1) {
			continue
		}
		raw, _ := p.img.Bytes(valOff, int64(entry.Length))
		p.rep.Constants = append(p.rep.Constants, string(raw))
	}
}

// extractTypeLib hunts the custom attributes attached to the Assembly row
// for System.Runtime.InteropServices.GuidAttribute and records its GUID
// argument. The chain is CustomAttribute.Type -> MemberRef.Class ->
// TypeRef.Name, all 1-based coded indices.
func (p *tableParser) extractTypeLib(off int64, numRows uint32, rowSize, parentWidth, typeWidth int64) {
	if p.set.blob == nil || p.memberRefBase == 0 || p.typeRefBase == 0 {
		return
	}
	for i := uint32(0); i < numRows; i++ {
		row := off + int64(i)*rowSize
		if !p.img.Fits(row, rowSize) {
			return
		}
		parent, _ := readIndex(p.img, row, parentWidth)
		if parent&0x1F != tagHasCAAssembly {
			continue
		}
		typ, _ := readIndex(p.img, row+parentWidth, typeWidth)
		if typ&0x07 != tagCATypeMemberRef {
			continue
		}
		memberIdx := typ >> 3
		if memberIdx == 0 || memberIdx > p.rows.memberRef {
			continue
		}

		memberRow := p.memberRefBase + int64(memberIdx-1)*p.memberRefRowSize
		class, ok := readIndex(p.img, memberRow, p.memberRefClassWidth)
		if !ok || class&0x07 != tagMemberRefParentTypeRef {
			continue
		}
		typeIdx := class >> 3
		if typeIdx == 0 || typeIdx > p.rows.typeRef {
			continue
		}

		typeRow := p.typeRefBase + int64(typeIdx-1)*p.typeRefRowSize
		nameIdx, ok := readIndex(p.img, typeRow+p.typeRefScopeWidth, p.s.str)
		if !ok {
			continue
		}
		name, ok := p.heapString(nameIdx)
		if !ok || name != "GuidAttribute" {
			continue
		}

		valueIdx, _ := readIndex(p.img, row+parentWidth+typeWidth, p.s.blob)
		if valueIdx == 0 {
			continue
		}
		blobOff := p.set.blob.offset + int64(valueIdx)
		entry := parseBlobEntry(p.img, blobOff)
		// At least the 2-byte prolog and the string length byte, with the
		// whole value strictly inside the image.
		valOff := blobOff + int64(entry.Size)
		if entry.Size == 0 || entry.Length < 3 ||
			!p.img.Fits(valOff, int64(entry.Length)+1) {
			continue
		}

		// FixedArg value: prolog 0x0001, then a counted UTF-8 string.
		prolog, _ := p.img.U16(valOff)
		if prolog != 0x0001 {
			continue
		}
		strLen, _ := p.img.U8(valOff + 2)
		if !p.img.Fits(valOff+3, int64(strLen)) {
			continue
		}

		// A string opening with 0x00 or 0xFF marks a null or empty value.
		// Multiple qualifying rows overwrite; the last one stands.
		typelib := ""
		if strLen > 0 {
			if first, _ := p.img.U8(valOff + 3); first != 0x00 && first != 0xFF {
				raw, _ := p.img.Bytes(valOff+3, int64(strLen))
				typelib = string(raw)
			}
		}
		p.rep.TypeLib = &typelib
	}
}

func (p *tableParser) extractModuleRefs(off int64, numRows uint32, rowSize int64) {
	if p.rep.ModuleRefs == nil {
		p.rep.ModuleRefs = []string{}
	}
	for i := uint32(0); i < numRows; i++ {
		row := off + int64(i)*rowSize
		if !p.img.Fits(row, rowSize) {
			return
		}
		index, _ := readIndex(p.img, row, p.s.str)
		if name, ok := p.heapString(index); ok {
			p.rep.ModuleRefs = append(p.rep.ModuleRefs, name)
		}
	}
}

func (p *tableParser) extractFieldOffsets(off int64, numRows uint32, rowSize int64) {
	if p.rep.FieldOffsets == nil {
		p.rep.FieldOffsets = []int64{}
	}
	for i := uint32(0); i < numRows; i++ {
		row := off + int64(i)*rowSize
		if !p.img.Fits(row, rowSize) {
			return
		}
		rva, _ := p.img.U32(row)
		if fileOff := p.pe.RVAToOffset(rva); fileOff >= 0 {
			p.rep.FieldOffsets = append(p.rep.FieldOffsets, fileOff)
		}
	}
}

func (p *tableParser) extractAssembly(off int64, numRows uint32, rowSize int64) {
	if numRows == 0 || !p.img.Fits(off, rowSize) {
		return
	}
	major, _ := p.img.U16(off + 4)
	minor, _ := p.img.U16(off + 6)
	build, _ := p.img.U16(off + 8)
	revision, _ := p.img.U16(off + 10)
	asm := &Assembly{
		Version: Version{Major: major, Minor: minor, Build: build, Revision: revision},
	}

	nameIdx, _ := readIndex(p.img, off+16+p.s.blob, p.s.str)
	if name, ok := p.heapString(nameIdx); ok {
		asm.Name = &name
	}
	cultureIdx, _ := readIndex(p.img, off+16+p.s.blob+p.s.str, p.s.str)
	if culture, ok := p.heapString(cultureIdx); ok && len(culture) > 0 {
		asm.Culture = &culture
	}
	p.rep.Assembly = asm
}

func (p *tableParser) extractAssemblyRefs(off int64, numRows uint32, rowSize int64) {
	if p.rep.AssemblyRefs == nil {
		p.rep.AssemblyRefs = []AssemblyRef{}
	}
	for i := uint32(0); i < numRows; i++ {
		row := off + int64(i)*rowSize
		if !p.img.Fits(row, rowSize) {
			return
		}
		major, _ := p.img.U16(row)
		minor, _ := p.img.U16(row + 2)
		build, _ := p.img.U16(row + 4)
		revision, _ := p.img.U16(row + 6)
		ref := AssemblyRef{
			Version: Version{Major: major, Minor: minor, Build: build, Revision: revision},
		}

		keyIdx, _ := readIndex(p.img, row+12, p.s.blob)
		blobOff := p.set.blob.offset + int64(keyIdx)
		entry := parseBlobEntry(p.img, blobOff)
		valOff := blobOff + int64(entry.Size)
		if entry.Size == 0 || !p.img.Fits(valOff, int64(entry.Length)) {
			// A row with a mangled key blob still counts, version and all,
			// but yields neither key nor name.
			p.rep.AssemblyRefs = append(p.rep.AssemblyRefs, ref)
			continue
		}
		if entry.Length > 0 {
			raw, _ := p.img.Bytes(valOff, int64(entry.Length))
			key := string(raw)
			ref.PublicKeyOrToken = &key
		}

		// Name sits right after the PublicKeyOrToken column; Culture and
		// HashValue trail it, which is why the row size counts both widths
		// twice.
		nameIdx, _ := readIndex(p.img, row+12+p.s.blob, p.s.str)
		if name, ok := p.heapString(nameIdx); ok {
			ref.Name = &name
		}
		p.rep.AssemblyRefs = append(p.rep.AssemblyRefs, ref)
	}
}

func (p *tableParser) extractResources(off int64, numRows uint32, rowSize, implWidth int64) {
	if p.rep.Resources == nil {
		p.rep.Resources = []Resource{}
	}
	if p.resourceBase < 0 {
		return
	}
	for i := uint32(0); i < numRows; i++ {
		row := off + int64(i)*rowSize
		if !p.img.Fits(row, rowSize) {
			return
		}
		impl, _ := readIndex(p.img, row+8+p.s.str, implWidth)
		if impl != 0 {
			// Resource lives in another file or assembly.
			continue
		}
		resourceOff, _ := p.img.U32(row)
		lenOff := p.resourceBase + int64(resourceOff)
		length, ok := p.img.U32(lenOff)
		if !ok || !p.img.Fits(lenOff, int64(length)) {
			continue
		}
		res := Resource{Offset: lenOff + 4, Length: length}

		nameIdx, _ := readIndex(p.img, row+8, p.s.str)
		if name, ok := p.heapString(nameIdx); ok {
			res.Name = &name
		}
		p.rep.Resources = append(p.rep.Resources, res)
	}
}
