// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package partition encodes and decodes partition key tuples to and from
// ordered string maps, and extracts the derived timestamp used by the
// expire controller.
package partition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/errs"

	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/schema"
)

// Error is the class for partition codec failures.
var Error = errs.Class("partition")

// ErrUnparseable is returned by Timestamp when a partition's designated
// column(s) do not match the configured formatter.
var ErrUnparseable = Error.New("unparseable partition timestamp")

// DefaultFormatter is used when partition.timestamp-formatter is unset.
const DefaultFormatter = "yyyyMMdd"

// Partition is an ordered map from partition-key column name to its
// formatted string value.
type Partition struct {
	Schema []string // ordered field names, defines iteration order
	Values map[string]string
}

// Key returns a stable string key for using Partition as a map key or set
// element, joining values in schema order.
func (p Partition) Key() string {
	key := ""
	for i, name := range p.Schema {
		if i > 0 {
			key += "/"
		}
		key += name + "=" + p.Values[name]
	}
	return key
}

// Encode formats a row against the partition schema into an ordered
// string map.
func Encode(fields []schema.Field, row keyvalue.Row) (Partition, error) {
	if len(row) != len(fields) {
		return Partition{}, Error.Wrap(fmt.Errorf("row has %d values, schema has %d fields", len(row), len(fields)))
	}
	p := Partition{
		Schema: make([]string, len(fields)),
		Values: make(map[string]string, len(fields)),
	}
	for i, f := range fields {
		p.Schema[i] = f.Name
		p.Values[f.Name] = formatValue(row[i])
	}
	return p, nil
}

// Decode parses an ordered string map against the schema back into a row,
// the reverse of Encode.
func Decode(fields []schema.Field, p Partition) (keyvalue.Row, error) {
	row := make(keyvalue.Row, len(fields))
	for i, f := range fields {
		raw, ok := p.Values[f.Name]
		if !ok {
			return nil, Error.Wrap(fmt.Errorf("partition missing field %q", f.Name))
		}
		v, err := parseValue(f.Type, raw)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		row[i] = v
	}
	return row, nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func parseValue(t schema.FieldType, raw string) (interface{}, error) {
	switch t {
	case schema.TypeString:
		return raw, nil
	case schema.TypeInt:
		return strconv.ParseInt(raw, 10, 64)
	case schema.TypeFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return nil, fmt.Errorf("unsupported field type %v", t)
	}
}

// Pattern composes the formatter input from a partition, following the
// partition.timestamp-pattern template (a $field placeholder per
// designated column). An empty pattern means "use the first partition
// column".
func Pattern(p Partition, template string) (string, error) {
	if template == "" {
		if len(p.Schema) == 0 {
			return "", Error.Wrap(fmt.Errorf("partition has no columns to derive a timestamp from"))
		}
		return p.Values[p.Schema[0]], nil
	}
	out := make([]byte, 0, len(template))
	for i := 0; i < len(template); i++ {
		if template[i] == '$' && i+1 < len(template) {
			j := i + 1
			for j < len(template) && isIdentByte(template[j]) {
				j++
			}
			name := template[i+1 : j]
			v, ok := p.Values[name]
			if !ok {
				return "", Error.Wrap(fmt.Errorf("timestamp pattern references unknown field %q", name))
			}
			out = append(out, v...)
			i = j - 1
			continue
		}
		out = append(out, template[i])
	}
	return string(out), nil
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Timestamp parses the partition's derived timestamp with the given
// formatter pattern (Java-style, e.g. "yyyyMMdd"), returning ErrUnparseable
// when the input does not match.
func Timestamp(p Partition, template, formatter string) (time.Time, error) {
	if formatter == "" {
		formatter = DefaultFormatter
	}
	input, err := Pattern(p, template)
	if err != nil {
		// A pattern that cannot be composed is treated the same as an
		// unparseable timestamp: the partition is preserved, never
		// silently dropped.
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	goLayout, err := javaToGoLayout(formatter)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	t, err := time.ParseInLocation(goLayout, input, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return t, nil
}

// javaToGoLayout converts a small subset of Java SimpleDateFormat
// patterns (yyyy, MM, dd, HH, mm, ss) into a Go reference-time layout
// string.
func javaToGoLayout(pattern string) (string, error) {
	replacements := []struct {
		java string
		goFmt string
	}{
		{"yyyy", "2006"},
		{"MM", "01"},
		{"dd", "02"},
		{"HH", "15"},
		{"mm", "04"},
		{"ss", "05"},
	}
	out := pattern
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r.java, r.goFmt)
	}
	if out == pattern && pattern != "" {
		// No recognized token at all: still usable verbatim only if it
		// happens to already be a literal, but that is almost certainly
		// a configuration mistake.
		return "", fmt.Errorf("unrecognized timestamp formatter %q", pattern)
	}
	return out, nil
}
