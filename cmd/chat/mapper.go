package main

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"chat-mirror/internal"
)

// messageMapper decodes cached message rows for the debug inspector.
func messageMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var fields structpb.Struct
	if err := proto.Unmarshal(val, &fields); err != nil {
		return row
	}
	f := fields.GetFields()
	row.Sender = f["senderId"].GetStringValue()
	row.Content = f["content"].GetStringValue()
	if f["voiceUrl"].GetStringValue() != "" {
		row.Content = "[voice] " + f["voiceUrl"].GetStringValue()
	}
	return row
}
