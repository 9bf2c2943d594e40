// Package remote models the external document store, blob storage, and
// account service the client talks to. The remote side is a black box:
// this package only fixes the contract, plus the schemaless document
// representation shared with the local cache encoding.
package remote

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Document is a schemaless field bag keyed by a document identifier.
// All getters are defensive: a missing or mistyped field yields the zero
// value instead of an error, so one malformed document never poisons the
// batch it arrived in.
type Document struct {
	ID     string
	fields *structpb.Struct
}

// NewDocument builds a document from a plain field map.
// Unsupported field values (anything structpb cannot represent) are rejected.
func NewDocument(id string, fields map[string]any) (Document, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, fields: s}, nil
}

// FromStruct wraps an already decoded structpb payload.
func FromStruct(id string, s *structpb.Struct) Document {
	return Document{ID: id, fields: s}
}

func (d Document) GetString(key string) string {
	return d.fields.GetFields()[key].GetStringValue()
}

func (d Document) GetInt64(key string) int64 {
	return int64(d.fields.GetFields()[key].GetNumberValue())
}

func (d Document) GetBool(key string) bool {
	return d.fields.GetFields()[key].GetBoolValue()
}

func (d Document) GetStrings(key string) []string {
	list := d.fields.GetFields()[key].GetListValue()
	if list == nil {
		return nil
	}
	var out []string
	for _, v := range list.GetValues() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}
	return out
}

// Has reports whether the field is present, regardless of its type.
func (d Document) Has(key string) bool {
	_, ok := d.fields.GetFields()[key]
	return ok
}

// Fields returns a mutable copy of the underlying field map.
func (d Document) Fields() map[string]any {
	return d.fields.AsMap()
}

// Marshal encodes the field bag for storage.
func (d Document) Marshal() ([]byte, error) {
	return proto.Marshal(d.fields)
}

// UnmarshalDocument decodes a field bag previously produced by Marshal.
func UnmarshalDocument(id string, data []byte) (Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Document{}, err
	}
	return Document{ID: id, fields: &s}, nil
}
