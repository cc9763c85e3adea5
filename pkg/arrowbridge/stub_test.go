//go:build !arrow

package arrowbridge

import (
	"testing"

	perrors "github.com/protobase/protobase/pkg/errors"
)

func TestToArrowReturnsArrowNotAvailableWithoutBuildTag(t *testing.T) {
	_, err := ToArrow([]Record{{"n": {}}})
	var target *perrors.ArrowNotAvailable
	if !perrors.As(err, &target) {
		t.Fatalf("ToArrow error = %v, want *ArrowNotAvailable", err)
	}
}

func TestVectorsFixedSizeListReturnsArrowNotAvailableWithoutBuildTag(t *testing.T) {
	_, err := VectorsFixedSizeList([][]float32{{1, 2, 3}})
	var target *perrors.ArrowNotAvailable
	if !perrors.As(err, &target) {
		t.Fatalf("VectorsFixedSizeList error = %v, want *ArrowNotAvailable", err)
	}
}
