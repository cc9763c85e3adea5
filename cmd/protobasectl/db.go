package main

import (
	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/blockprovider"
	"github.com/protobase/protobase/pkg/objectspace"
	"github.com/protobase/protobase/pkg/wal"
)

func openSpace(dir string) (*objectspace.ObjectSpace, error) {
	provider, err := blockprovider.NewFile(dir, blockprovider.DefaultFileOptions())
	if err != nil {
		return nil, err
	}
	space, err := objectspace.Open(provider, wal.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return space, nil
}

// encodeJSONAtom parses an extended-JSON document and builds its
// content-addressed atom, the same conversion the put command and its
// tests exercise.
func encodeJSONAtom(jsonDoc string) (atom.Atom, error) {
	value, err := atom.JSONToValue(jsonDoc)
	if err != nil {
		return atom.Atom{}, err
	}
	tag, body, refs := atom.EncodeValue(value)
	return atom.New(tag, body, refs), nil
}
