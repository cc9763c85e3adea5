package objectspace

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"

	"github.com/protobase/protobase/pkg/atom"
)

func TestRootMapEncodeDecodeRoundTrips(t *testing.T) {
	rm := NewRootMap()
	want := map[string]atom.ID{
		"products": atom.New(atom.TagI64, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nil).ID,
		"orders":   atom.New(atom.TagI64, []byte{2, 0, 0, 0, 0, 0, 0, 0}, nil).ID,
		"users":    atom.New(atom.TagI64, []byte{3, 0, 0, 0, 0, 0, 0, 0}, nil).ID,
	}
	for name, id := range want {
		rm = rm.Set(name, id)
	}

	decoded, err := DecodeRootMap(rm.Encode())
	require.NoError(t, err)

	for name, id := range want {
		got, ok := decoded.Get(name)
		if !assertEqualID(t, name, id, got, ok) {
			t.Logf("root map entries: %# v", pretty.Formatter(decoded.Names()))
		}
	}
}

func assertEqualID(t *testing.T, name string, want, got atom.ID, ok bool) bool {
	t.Helper()
	if !ok || want != got {
		t.Errorf("decoded.Get(%q) = %v, %v; want %v, true", name, got, ok, want)
		return false
	}
	return true
}
