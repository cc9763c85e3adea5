//go:build arrow

package arrowbridge

import (
	"context"
	"os"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

var pool = memory.NewGoAllocator()

type arrowTable struct {
	t arrow.Table
}

func (a *arrowTable) NumRows() int64 { return a.t.NumRows() }
func (a *arrowTable) NumCols() int64 { return int64(a.t.NumCols()) }
func (a *arrowTable) ColumnNames() []string {
	names := make([]string, a.t.NumCols())
	for i := range names {
		names[i] = a.t.Schema().Field(i).Name
	}
	return names
}

// ToArrow converts a homogeneous-ish slice of Records into an Arrow table,
// inferring each column's type from the first non-null Value it finds
// across the slice. Columns missing from a given row encode as null.
func ToArrow(records []Record) (Table, error) {
	if len(records) == 0 {
		return &arrowTable{t: array.NewTableFromRecords(arrow.NewSchema(nil, nil), nil)}, nil
	}

	columns := collectColumns(records)
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		fields[i] = arrow.Field{Name: col, Type: inferType(records, col), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for _, rec := range records {
		for i, col := range columns {
			v, ok := rec[col]
			appendValue(builder.Field(i), v, ok && v.Tag != atom.TagNull)
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	return &arrowTable{t: tbl}, nil
}

func collectColumns(records []Record) []string {
	seen := map[string]bool{}
	var columns []string
	for _, rec := range records {
		for col := range rec {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func inferType(records []Record, col string) arrow.DataType {
	for _, rec := range records {
		v, ok := rec[col]
		if !ok || v.Tag == atom.TagNull {
			continue
		}
		switch v.Tag {
		case atom.TagBool:
			return arrow.FixedWidthTypes.Boolean
		case atom.TagI64:
			return arrow.PrimitiveTypes.Int64
		case atom.TagF64:
			return arrow.PrimitiveTypes.Float64
		case atom.TagStr:
			return arrow.BinaryTypes.String
		case atom.TagBytes, atom.TagAtomRef:
			return arrow.BinaryTypes.Binary
		}
	}
	return arrow.BinaryTypes.String
}

func appendValue(b array.Builder, v atom.Value, present bool) {
	if !present {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.BooleanBuilder:
		fb.Append(v.Bool)
	case *array.Int64Builder:
		fb.Append(v.I64)
	case *array.Float64Builder:
		fb.Append(v.F64)
	case *array.StringBuilder:
		fb.Append(v.Str)
	case *array.BinaryBuilder:
		if v.Tag == atom.TagAtomRef {
			fb.Append(v.Ref[:])
		} else {
			fb.Append(v.Bytes)
		}
	default:
		b.AppendNull()
	}
}

// TableToParquet writes t to a local Parquet file at path.
func TableToParquet(t Table, path string) error {
	tbl, ok := t.(*arrowTable)
	if !ok {
		return &perrors.ArrowNotAvailable{Op: "table_to_parquet: not an arrowbridge.Table"}
	}

	f, err := os.Create(path)
	if err != nil {
		return perrors.Wrap(err, "create parquet file")
	}
	defer f.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(parquet.Compressions.Snappy))
	return pqarrow.WriteTable(tbl.t, f, tbl.t.NumRows(), props, pqarrow.DefaultWriterProps())
}

// ScanParquet reads a local Parquet file back into a Table.
func ScanParquet(path string) (Table, error) {
	r, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, perrors.Wrap(err, "open parquet file")
	}
	defer r.Close()

	reader, err := pqarrow.NewFileReader(r, pqarrow.ArrowReadProperties{}, pool)
	if err != nil {
		return nil, perrors.Wrap(err, "create parquet arrow reader")
	}

	tbl, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, perrors.Wrap(err, "read parquet table")
	}
	return &arrowTable{t: tbl}, nil
}

type fixedSizeList struct {
	arr   *array.FixedSizeList
	width int
}

func (f *fixedSizeList) Len() int   { return f.arr.Len() }
func (f *fixedSizeList) Width() int { return f.width }

// VectorsFixedSizeList packs equal-length float32 vectors into a single
// Arrow FixedSizeList column, for exporting a vector index's raw vectors
// alongside the rest of a table.
func VectorsFixedSizeList(vectors [][]float32) (FixedSizeListArray, error) {
	if len(vectors) == 0 {
		return nil, perrors.New("vectors_fixed_size_list: empty input")
	}
	width := len(vectors[0])
	for _, v := range vectors {
		if len(v) != width {
			return nil, perrors.New("vectors_fixed_size_list: vectors must share one width")
		}
	}

	builder := array.NewFixedSizeListBuilder(pool, int32(width), arrow.PrimitiveTypes.Float32)
	defer builder.Release()
	valueBuilder := builder.ValueBuilder().(*array.Float32Builder)

	for _, v := range vectors {
		builder.Append(true)
		for _, f32 := range v {
			valueBuilder.Append(f32)
		}
	}

	arr := builder.NewListArray()
	return &fixedSizeList{arr: arr, width: width}, nil
}
