//go:build !arrow

package arrowbridge

import perrors "github.com/protobase/protobase/pkg/errors"

// ToArrow requires the module to be built with -tags arrow.
func ToArrow(records []Record) (Table, error) {
	return nil, &perrors.ArrowNotAvailable{Op: "to_arrow"}
}

// TableToParquet requires the module to be built with -tags arrow.
func TableToParquet(t Table, path string) error {
	return &perrors.ArrowNotAvailable{Op: "table_to_parquet"}
}

// ScanParquet requires the module to be built with -tags arrow.
func ScanParquet(path string) (Table, error) {
	return nil, &perrors.ArrowNotAvailable{Op: "scan_parquet"}
}

// VectorsFixedSizeList requires the module to be built with -tags arrow.
func VectorsFixedSizeList(vectors [][]float32) (FixedSizeListArray, error) {
	return nil, &perrors.ArrowNotAvailable{Op: "vectors_fixed_size_list"}
}
