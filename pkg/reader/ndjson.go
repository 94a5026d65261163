// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package reader

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
)

// ndjsonRecord is the on-disk shape of one line in an NDJSONFactory file.
type ndjsonRecord struct {
	Key   keyvalue.Row     `json:"key"`
	Value keyvalue.Row     `json:"value"`
	Seq   int64            `json:"seq"`
	Kind  keyvalue.RowKind `json:"kind"`
}

// NDJSONFactory is a RawFactory reading newline-delimited JSON records, one
// keyvalue.KeyValue per line. It does not evaluate any pushed predicate
// itself, so Open always returns the full predicate back as unpushed; the
// decorated reader above applies it row by row.
type NDJSONFactory struct {
	FileIO fileio.FileIO
}

// Open implements RawFactory.
func (f NDJSONFactory) Open(ctx context.Context, file keyvalue.DataFileMeta, projectKeysOnly bool, pushed Predicate) (RecordReader, Predicate, error) {
	rc, err := f.FileIO.OpenInput(ctx, file.Path)
	if err != nil {
		return nil, Predicate{}, Error.Wrap(err)
	}
	return &ndjsonReader{rc: rc, scanner: bufio.NewScanner(rc), projectKeysOnly: projectKeysOnly}, pushed, nil
}

type ndjsonReader struct {
	rc              io.ReadCloser
	scanner         *bufio.Scanner
	projectKeysOnly bool
}

// Next implements RecordReader.
func (r *ndjsonReader) Next(ctx context.Context) (keyvalue.KeyValue, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return keyvalue.KeyValue{}, Error.Wrap(err)
		}
		return keyvalue.KeyValue{}, io.EOF
	}
	var rec ndjsonRecord
	if err := json.Unmarshal(r.scanner.Bytes(), &rec); err != nil {
		return keyvalue.KeyValue{}, Error.Wrap(err)
	}
	kv := keyvalue.KeyValue{Key: rec.Key, Value: rec.Value, SeqNumber: rec.Seq, Kind: rec.Kind}
	if r.projectKeysOnly {
		kv.Value = nil
	}
	return kv, nil
}

// Close implements RecordReader.
func (r *ndjsonReader) Close() error {
	return r.rc.Close()
}
