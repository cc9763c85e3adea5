package atom

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// DocumentToValue marshals a host document (a bson.D, the same shape the
// teacher's JsonToBson produced) to a Bytes Value, so a whole document can
// be stored as a single blob atom's payload. bson.Marshal is deterministic
// for a given bson.D, so two transactions writing the same document
// produce byte-identical, and therefore identically-addressed, atoms.
func DocumentToValue(doc bson.D) (Value, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return Value{}, perrors.Wrap(err, "marshal document to bson")
	}
	return FromBytes(data), nil
}

// ValueToDocument is the inverse of DocumentToValue; it fails with
// CorruptAtom if v is not a Bytes value holding valid BSON.
func ValueToDocument(v Value) (bson.D, error) {
	if v.Tag != TagBytes {
		return nil, &perrors.CorruptAtom{Reason: "value is not a document blob"}
	}
	var doc bson.D
	if err := bson.Unmarshal(v.Bytes, &doc); err != nil {
		return nil, perrors.Wrap(err, "unmarshal document bson")
	}
	return doc, nil
}

// JSONToValue parses an extended-JSON document string directly to a Bytes
// value, mirroring the teacher's JsonToBson convenience path.
func JSONToValue(jsonStr string) (Value, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(jsonStr), true, &doc); err != nil {
		return Value{}, perrors.Wrap(err, "parse json document")
	}
	return DocumentToValue(doc)
}

// ValueToJSON is the inverse of JSONToValue.
func ValueToJSON(v Value) (string, error) {
	doc, err := ValueToDocument(v)
	if err != nil {
		return "", err
	}
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return "", perrors.Wrap(err, "marshal json document")
	}
	return string(out), nil
}
