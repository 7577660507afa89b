// Copyright 2025 Poiesic Systems
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
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/voxbank/core"
)

// MarshalRecord serializes a StoreRecord to bytes.
// Metadata keys are written in sorted order so equal records encode equally.
func MarshalRecord(record *core.StoreRecord) []byte {
	keys := sortedKeys(record.Metadata)

	size := ord.String.Size(string(record.ID)) +
		varint.Uint64.Size(uint64(len(record.Embedding))) +
		varint.Uint64.Size(uint64(len(keys))) +
		ord.String.Size(record.Document) +
		varint.Int64.Size(record.InsertedAt.UnixMicro())
	for _, v := range record.Embedding {
		size += varint.Float32.Size(v)
	}
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(record.Metadata[k])
	}

	e := encoder{bs: make([]byte, size)}
	e.string(string(record.ID))
	e.uint64(uint64(len(record.Embedding)))
	for _, v := range record.Embedding {
		e.float32(v)
	}
	e.uint64(uint64(len(keys)))
	for _, k := range keys {
		e.string(k)
		e.string(record.Metadata[k])
	}
	e.string(record.Document)
	e.int64(record.InsertedAt.UnixMicro())
	return e.bs[:e.n]
}

// UnmarshalRecord deserializes a StoreRecord from bytes.
func UnmarshalRecord(data []byte) (*core.StoreRecord, error) {
	d := decoder{bs: data}
	record := &core.StoreRecord{}

	record.ID = core.ItemID(d.string())
	if n := d.length(); d.err == nil {
		record.Embedding = make(core.Embedding, n)
		for i := range record.Embedding {
			record.Embedding[i] = d.float32()
		}
	}
	if n := d.length(); d.err == nil {
		record.Metadata = make(map[string]string, n)
		for i := 0; i < n && d.err == nil; i++ {
			k := d.string()
			record.Metadata[k] = d.string()
		}
	}
	record.Document = d.string()
	record.InsertedAt = time.UnixMicro(d.int64()).UTC()

	if d.err != nil {
		return nil, fmt.Errorf("%w: record: %w", ErrSerializationFailed, d.err)
	}
	return record, nil
}

// MarshalSchema serializes a CollectionSchema to bytes.
func MarshalSchema(schema *core.CollectionSchema) []byte {
	size := ord.String.Size(schema.Name) +
		varint.Uint64.Size(uint64(len(schema.Fields))) +
		varint.Int64.Size(schema.CreatedAt.UnixMicro())
	for _, f := range schema.Fields {
		size += ord.String.Size(f)
	}

	e := encoder{bs: make([]byte, size)}
	e.string(schema.Name)
	e.uint64(uint64(len(schema.Fields)))
	for _, f := range schema.Fields {
		e.string(f)
	}
	e.int64(schema.CreatedAt.UnixMicro())
	return e.bs[:e.n]
}

// UnmarshalSchema deserializes a CollectionSchema from bytes.
func UnmarshalSchema(data []byte) (*core.CollectionSchema, error) {
	d := decoder{bs: data}
	schema := &core.CollectionSchema{}

	schema.Name = d.string()
	if n := d.length(); d.err == nil {
		schema.Fields = make([]string, n)
		for i := range schema.Fields {
			schema.Fields[i] = d.string()
		}
	}
	schema.CreatedAt = time.UnixMicro(d.int64()).UTC()

	if d.err != nil {
		return nil, fmt.Errorf("%w: schema: %w", ErrSerializationFailed, d.err)
	}
	return schema, nil
}

// MarshalRunSummary serializes a RunSummary to bytes.
func MarshalRunSummary(summary *core.RunSummary) []byte {
	size := ord.String.Size(summary.RunID) +
		ord.String.Size(summary.Collection) +
		varint.Int64.Size(summary.StartedAt.UnixMicro()) +
		varint.Int64.Size(summary.FinishedAt.UnixMicro()) +
		varint.Int64.Size(int64(summary.NewEntries)) +
		varint.Int64.Size(int64(summary.Skipped)) +
		varint.Int64.Size(int64(summary.TotalInStore))

	e := encoder{bs: make([]byte, size)}
	e.string(summary.RunID)
	e.string(summary.Collection)
	e.int64(summary.StartedAt.UnixMicro())
	e.int64(summary.FinishedAt.UnixMicro())
	e.int64(int64(summary.NewEntries))
	e.int64(int64(summary.Skipped))
	e.int64(int64(summary.TotalInStore))
	return e.bs[:e.n]
}

// UnmarshalRunSummary deserializes a RunSummary from bytes.
func UnmarshalRunSummary(data []byte) (*core.RunSummary, error) {
	d := decoder{bs: data}
	summary := &core.RunSummary{}

	summary.RunID = d.string()
	summary.Collection = d.string()
	summary.StartedAt = time.UnixMicro(d.int64()).UTC()
	summary.FinishedAt = time.UnixMicro(d.int64()).UTC()
	summary.NewEntries = int(d.int64())
	summary.Skipped = int(d.int64())
	summary.TotalInStore = int(d.int64())

	if d.err != nil {
		return nil, fmt.Errorf("%w: run summary: %w", ErrSerializationFailed, d.err)
	}
	return summary, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// encoder appends MUS-encoded values to a pre-sized buffer.
type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) string(v string)   { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) uint64(v uint64)   { e.n += varint.Uint64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int64(v int64)     { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) float32(v float32) { e.n += varint.Float32.Marshal(v, e.bs[e.n:]) }

// decoder reads MUS-encoded values and keeps the first error.
// Once an error is recorded every read returns the zero value.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Float32.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

// length reads a collection length and rejects values that cannot fit in
// the remaining bytes (every element takes at least one byte).
func (d *decoder) length() int {
	l := d.uint64()
	if d.err == nil && l > uint64(len(d.bs)-d.n) {
		d.err = ErrTruncatedData
	}
	return int(l)
}
