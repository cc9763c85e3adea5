// Package arrowbridge implements §6's Arrow handshake (to_arrow,
// table_to_parquet, scan_parquet, vectors_fixed_size_list). No pack repo
// imports Arrow, so the real conversion lives behind the "arrow" build tag
// in enabled.go; stub.go satisfies the same surface with
// ArrowNotAvailable when that tag is absent, so embedding hosts that never
// need columnar export don't pull apache/arrow/go/v17 into their binary.
package arrowbridge

import "github.com/protobase/protobase/pkg/atom"

// Record is one row handed to ToArrow: column name to scalar value. Every
// Record in a slice passed to ToArrow should carry the same column set;
// a column missing from a given row is encoded as a null in that row's slot.
type Record map[string]atom.Value

// Table is the columnar result of ToArrow/ScanParquet, opaque outside this
// package so code built without the arrow tag never needs to import
// apache/arrow/go/v17 types directly.
type Table interface {
	NumRows() int64
	NumCols() int64
	ColumnNames() []string
}

// FixedSizeListArray is the result of VectorsFixedSizeList: a column of
// equal-length float32 vectors, as produced for vector index columns
// destined for Arrow-based export.
type FixedSizeListArray interface {
	Len() int
	Width() int
}
