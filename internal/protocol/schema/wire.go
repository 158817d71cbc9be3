package schema

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field writers follow proto3 canonical rules: fields in number order,
// zero scalars omitted, repeated doubles packed.

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendStrings(b []byte, num protowire.Number, vs []string) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

func appendDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// fieldReader walks the fields of one encoded message.
type fieldReader struct {
	buf     []byte
	field   []byte
	num     protowire.Number
	typ     protowire.Type
	err     error
	unknown []byte
}

func newFieldReader(b []byte) *fieldReader {
	return &fieldReader{buf: b}
}

func (r *fieldReader) next() bool {
	if r.err != nil || len(r.buf) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.buf)
	if n < 0 {
		r.err = protowire.ParseError(n)
		return false
	}
	r.num, r.typ = num, typ
	r.field = r.buf
	r.buf = r.buf[n:]
	return true
}

func (r *fieldReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	r.buf = nil
}

// doubleWire marks a repeated double field, which may arrive packed or unpacked.
const doubleWire protowire.Type = -1

type wireTypes map[protowire.Number]protowire.Type

var (
	statusWire = wireTypes{
		1: protowire.VarintType, 2: protowire.VarintType, 3: protowire.VarintType, 4: protowire.VarintType,
		5: protowire.BytesType, 6: protowire.BytesType, 7: protowire.VarintType,
	}
	molWire = wireTypes{
		1: protowire.BytesType, 2: doubleWire, 3: protowire.VarintType, 4: protowire.VarintType,
		5: protowire.VarintType, 6: protowire.VarintType, 7: protowire.VarintType,
	}
	jobInputWire = wireTypes{
		1: protowire.BytesType, 2: protowire.VarintType, 3: protowire.VarintType, 4: protowire.BytesType,
		5: doubleWire, 6: protowire.BytesType, 7: protowire.BytesType, 8: protowire.BytesType,
		9: protowire.VarintType,
	}
	jobOutputWire = wireTypes{
		1: protowire.BytesType, 2: doubleWire, 3: doubleWire, 4: doubleWire, 5: doubleWire, 6: doubleWire,
		7: protowire.BytesType, 8: protowire.BytesType, 9: protowire.VarintType,
		10: protowire.BytesType, 11: protowire.BytesType, 12: doubleWire,
	}
)

// mismatched keeps a known field number carrying the wrong wire type as an
// unknown field and reports true so the caller moves on.
func (r *fieldReader) mismatched(known wireTypes) bool {
	want, ok := known[r.num]
	if !ok {
		return false
	}
	switch {
	case want == doubleWire && (r.typ == protowire.Fixed64Type || r.typ == protowire.BytesType):
		return false
	case want == r.typ:
		return false
	}
	r.skip()
	return true
}

func (r *fieldReader) expect(typ protowire.Type) bool {
	if r.typ != typ {
		r.fail(fmt.Errorf("field %d: wire type %d, want %d", r.num, r.typ, typ))
		return false
	}
	return true
}

func (r *fieldReader) varint() uint64 {
	if !r.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *fieldReader) boolVal() bool {
	return protowire.DecodeBool(r.varint())
}

func (r *fieldReader) int32Val() int32 {
	return int32(r.varint())
}

func (r *fieldReader) bytesVal() []byte {
	if !r.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return nil
	}
	r.buf = r.buf[n:]
	return v
}

func (r *fieldReader) stringVal() string {
	return string(r.bytesVal())
}

// doubles accepts both packed and unpacked encodings of a repeated double.
func (r *fieldReader) doubles(dst []float64) []float64 {
	switch r.typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(r.buf)
		if n < 0 {
			r.fail(protowire.ParseError(n))
			return dst
		}
		r.buf = r.buf[n:]
		return append(dst, math.Float64frombits(v))
	case protowire.BytesType:
		packed := r.bytesVal()
		if r.err != nil {
			return dst
		}
		if len(packed)%8 != 0 {
			r.fail(fmt.Errorf("field %d: packed double length %d", r.num, len(packed)))
			return dst
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeFixed64(packed)
			if n < 0 {
				r.fail(protowire.ParseError(n))
				return dst
			}
			dst = append(dst, math.Float64frombits(v))
			packed = packed[n:]
		}
		return dst
	default:
		r.fail(fmt.Errorf("field %d: wire type %d for repeated double", r.num, r.typ))
		return dst
	}
}

// skip keeps an unrecognized field verbatim so re-encoding preserves it.
func (r *fieldReader) skip() {
	n := protowire.ConsumeFieldValue(r.num, r.typ, r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return
	}
	consumed := len(r.field) - len(r.buf) + n
	r.unknown = append(r.unknown, r.field[:consumed]...)
	r.buf = r.buf[n:]
}

func appendOneofBool(b []byte, s JobStatus, v bool) []byte {
	b = protowire.AppendTag(b, protowire.Number(s)+1, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}
