package metadata

import (
	"github.com/davejbax/corepe/binio"
)

// heapSizes is the 3-bit (plus reserved bits) mask in the tables heap header
// selecting whether string/GUID/blob heap indices are 2 or 4 bytes wide.
type heapSizes uint8

const (
	heapWideStrings heapSizes = 0x01
	heapWideGUID    heapSizes = 0x02
	heapWideBlob    heapSizes = 0x04
	// heapExtraData and heapUnoptimized are informational hints the #-
	// variant additionally sets; we preserve them but don't act on them.
	heapExtraData   heapSizes = 0x40
	heapUnoptimized heapSizes = 0x20
)

// Row is one record of a table: its column values in schema order, resolved
// just far enough to be usable without reconstructing the raw wire bytes.
// Coded-index and simple-index columns are pre-decoded; heap columns remain
// offsets, to be resolved against a [Root]'s heaps on demand.
type Row struct {
	Table Table
	RID   uint32

	scalars  map[string]uint32 // colU16/colU32
	heaps    map[string]uint32 // colStringHeap/colGUIDHeap/colBlobHeap offsets
	indices  map[string]uint32 // colSimpleIndex RIDs
	coded    map[string]codedIndex
}

// U32 returns a fixed-width scalar column's value.
func (r Row) U32(col string) uint32 { return r.scalars[col] }

// U16 returns a fixed-width scalar column's value, narrowed from the
// internal uint32 storage.
func (r Row) U16(col string) uint16 { return uint16(r.scalars[col]) }

// StringIndex returns a #Strings heap offset column's value.
func (r Row) StringIndex(col string) uint32 { return r.heaps[col] }

// GUIDIndex returns a #GUID heap index column's value.
func (r Row) GUIDIndex(col string) uint32 { return r.heaps[col] }

// BlobIndex returns a #Blob heap offset column's value.
func (r Row) BlobIndex(col string) uint32 { return r.heaps[col] }

// SimpleIndex returns a single-table row-id reference column's value.
func (r Row) SimpleIndex(col string) uint32 { return r.indices[col] }

// Coded returns a coded-index column's decoded (table, rid) pair.
func (r Row) Coded(col string) (Table, uint32) {
	c := r.coded[col]
	return c.Table, c.RID
}

// TableStream is the parsed "#~" (optimised) or "#-" (uncompressed) logical
// tables heap: schema header, row counts, and every table's rows.
type TableStream struct {
	MajorVersion uint8
	MinorVersion uint8
	HeapSizes    heapSizes
	ValidMask    uint64
	SortedMask   uint64
	RowCounts    [tableCount]uint32

	rows [tableCount][]Row

	// RawExtra preserves any bytes between the declared row counts and the
	// first table's first row, byte for byte: the "#-" stream's extra data
	// has no documented semantics, so we round-trip it rather than guess.
	RawExtra []byte
}

// Rows returns every row of table t, in file order (index 0 = RID 1).
func (ts *TableStream) Rows(t Table) []Row { return ts.rows[t] }

// RowByRID returns the row with the given 1-based row id, or false if out
// of range. RID 0 is never valid (it means NULL) and always returns false.
func (ts *TableStream) RowByRID(t Table, rid uint32) (Row, bool) {
	if rid == 0 || t < 0 || int(t) >= len(ts.rows) {
		return Row{}, false
	}
	rows := ts.rows[t]
	if rid > uint32(len(rows)) {
		return Row{}, false
	}
	return rows[rid-1], true
}

// simpleIndexWidth returns the width in bytes required to store a simple
// table index into a table with rowCount rows.
func simpleIndexWidth(rowCount uint32) int {
	if rowCount >= 1<<16 {
		return 4
	}
	return 2
}

// codedIndexWidth returns the width in bytes required for a coded index of
// the given kind, given the row counts of every table it may reference.
func codedIndexWidth(kind codedKind, rowCounts [tableCount]uint32) int {
	bits := tagBits(kind)
	var maxRows uint32
	for _, t := range codedTargets[kind] {
		if t < 0 {
			continue
		}
		if rowCounts[t] > maxRows {
			maxRows = rowCounts[t]
		}
	}
	if uint64(maxRows)<<bits >= 1<<16 {
		return 4
	}
	return 2
}

// parseTableStream parses a "#~"/"#-" stream's bytes.
func parseTableStream(data []byte) (*TableStream, error) {
	r := binio.NewReaderBytes(data)

	if _, err := r.ReadU32(); err != nil { // reserved
		return nil, err
	}
	major, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	minor, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	hs, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU8(); err != nil { // reserved
		return nil, err
	}
	validMask, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	sortedMask, err := r.ReadU64()
	if err != nil {
		return nil, err
	}

	ts := &TableStream{
		MajorVersion: major,
		MinorVersion: minor,
		HeapSizes:    heapSizes(hs),
		ValidMask:    validMask,
		SortedMask:   sortedMask,
	}

	for t := Table(0); t < tableCount; t++ {
		if validMask&(1<<uint(t)) == 0 {
			continue
		}
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		ts.RowCounts[t] = count
	}

	// The heapExtraData bit is an undocumented extension some "#-" streams
	// set: a single extra uint32 follows the row counts, ahead of the first
	// row. Its meaning isn't specified anywhere we could find, so we
	// preserve it verbatim via RawExtra rather than guessing.
	if ts.HeapSizes&heapExtraData != 0 {
		extra, err := r.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		ts.RawExtra = extra
	}

	stringW, guidW, blobW := 2, 2, 2
	if ts.HeapSizes&heapWideStrings != 0 {
		stringW = 4
	}
	if ts.HeapSizes&heapWideGUID != 0 {
		guidW = 4
	}
	if ts.HeapSizes&heapWideBlob != 0 {
		blobW = 4
	}

	// Any declared table we don't have a schema for (shouldn't happen for a
	// well-formed ECMA-335 image, since validMask only names the closed
	// 0..44 table set) would desync the rest of the parse; guard it.
	for t := Table(0); t < tableCount; t++ {
		if ts.RowCounts[t] > 0 && len(schemas[t].columns) == 0 {
			return nil, malformedf("table %s has rows but no known schema", t)
		}
	}

	for t := Table(0); t < tableCount; t++ {
		count := ts.RowCounts[t]
		if count == 0 {
			continue
		}
		schema := schemas[t]
		rows := make([]Row, count)
		for rid := uint32(1); rid <= count; rid++ {
			row, err := parseRow(r, t, rid, schema, stringW, guidW, blobW, ts.RowCounts)
			if err != nil {
				return nil, err
			}
			rows[rid-1] = row
		}
		ts.rows[t] = rows
	}

	return ts, nil
}

func parseRow(r *binio.Reader, t Table, rid uint32, schema tableSchema, stringW, guidW, blobW int, rowCounts [tableCount]uint32) (Row, error) {
	row := Row{
		Table:   t,
		RID:     rid,
		scalars: make(map[string]uint32),
		heaps:   make(map[string]uint32),
		indices: make(map[string]uint32),
		coded:   make(map[string]codedIndex),
	}

	readWidth := func(width int) (uint32, error) {
		if width == 2 {
			v, err := r.ReadU16()
			return uint32(v), err
		}
		v, err := r.ReadU32()
		return v, err
	}

	for _, col := range schema.columns {
		switch col.kind {
		case colU16:
			v, err := r.ReadU16()
			if err != nil {
				return Row{}, err
			}
			row.scalars[col.name] = uint32(v)
		case colU32:
			v, err := r.ReadU32()
			if err != nil {
				return Row{}, err
			}
			row.scalars[col.name] = v
		case colStringHeap:
			v, err := readWidth(stringW)
			if err != nil {
				return Row{}, err
			}
			row.heaps[col.name] = v
		case colGUIDHeap:
			v, err := readWidth(guidW)
			if err != nil {
				return Row{}, err
			}
			row.heaps[col.name] = v
		case colBlobHeap:
			v, err := readWidth(blobW)
			if err != nil {
				return Row{}, err
			}
			row.heaps[col.name] = v
		case colSimpleIndex:
			width := simpleIndexWidth(rowCounts[col.target])
			v, err := readWidth(width)
			if err != nil {
				return Row{}, err
			}
			row.indices[col.name] = v
		case colCodedIndex:
			width := codedIndexWidth(col.coded, rowCounts)
			raw, err := readWidth(width)
			if err != nil {
				return Row{}, err
			}
			decoded, err := decodeCodedIndex(col.coded, raw)
			if err != nil {
				return Row{}, malformedAt(r.AbsolutePosition(), "table %s row %d column %s: %v", t, rid, col.name, err)
			}
			row.coded[col.name] = decoded
		}
	}

	return row, nil
}

// columnWidthsBytes returns the total on-wire width of one row of table t,
// given the current row counts of every table. Nothing in this package or
// its tests calls it.
func columnWidthsBytes(t Table, stringW, guidW, blobW int, rowCounts [tableCount]uint32) int {
	total := 0
	for _, col := range schemas[t].columns {
		switch col.kind {
		case colU16:
			total += 2
		case colU32:
			total += 4
		case colStringHeap:
			total += stringW
		case colGUIDHeap:
			total += guidW
		case colBlobHeap:
			total += blobW
		case colSimpleIndex:
			total += simpleIndexWidth(rowCounts[col.target])
		case colCodedIndex:
			total += codedIndexWidth(col.coded, rowCounts)
		}
	}
	return total
}
