// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragstore/core"
)

// attributesMUS serializes the open attribute bag of a document record.
var attributesMUS = ord.NewMapSer[string, string](ord.String, ord.String)

// documentRecordSer is a hand-written MUS serializer for core.DocumentRecord.
// Field order is part of the on-disk format and must not change.
type documentRecordSer struct{}

// DocumentRecordMUS serializes core.DocumentRecord values.
var DocumentRecordMUS = documentRecordSer{}

var _ mus.Serializer[core.DocumentRecord] = DocumentRecordMUS

func (documentRecordSer) Marshal(r core.DocumentRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.Filename, bs)
	n += varint.Int.Marshal(r.ChunkIndex, bs[n:])
	n += ord.String.Marshal(r.Text, bs[n:])
	n += varint.Uint64.Marshal(uint64(r.ContentID), bs[n:])
	n += attributesMUS.Marshal(r.Attributes, bs[n:])
	return n
}

func (documentRecordSer) Unmarshal(bs []byte) (r core.DocumentRecord, n int, err error) {
	var n1 int
	r.Filename, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	r.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var contentID uint64
	contentID, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.ContentID = core.ID(contentID)
	r.Attributes, n1, err = attributesMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (documentRecordSer) Size(r core.DocumentRecord) (size int) {
	size = ord.String.Size(r.Filename)
	size += varint.Int.Size(r.ChunkIndex)
	size += ord.String.Size(r.Text)
	size += varint.Uint64.Size(uint64(r.ContentID))
	size += attributesMUS.Size(r.Attributes)
	return size
}

func (documentRecordSer) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Uint64.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = attributesMUS.Skip(bs[n:])
	n += n1
	return
}

// MarshalDocumentRecord serializes a DocumentRecord to bytes.
func MarshalDocumentRecord(record *core.DocumentRecord) []byte {
	buf := make([]byte, DocumentRecordMUS.Size(*record))
	DocumentRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalDocumentRecord deserializes a DocumentRecord from bytes.
func UnmarshalDocumentRecord(data []byte) (*core.DocumentRecord, error) {
	record, _, err := DocumentRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
