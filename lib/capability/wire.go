package capability

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the wire form. A vector is a stream of field-1 records;
// each record is an entry message.
const (
	fieldEntry protowire.Number = 1

	fieldTag  protowire.Number = 1
	fieldInt  protowire.Number = 2
	fieldStr  protowire.Number = 3
	fieldFunc protowire.Number = 4
)

// MarshalBinary encodes v up to and including its terminator.
func (v Vector) MarshalBinary() ([]byte, error) {
	entries, err := v.Entries()
	if err != nil {
		return nil, err
	}

	var b []byte
	for _, e := range append(entries, Terminator()) {
		b = protowire.AppendTag(b, fieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalEntry(e))
	}
	return b, nil
}

func marshalEntry(e Entry) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTag, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(e.Tag)))

	switch e.Kind {
	case KindInt:
		b = protowire.AppendTag(b, fieldInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(e.Int))
	case KindString:
		b = protowire.AppendTag(b, fieldStr, protowire.BytesType)
		b = protowire.AppendString(b, e.Str)
	case KindFunc:
		b = protowire.AppendTag(b, fieldFunc, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

// UnmarshalBinary decodes a vector produced by MarshalBinary. The stream must
// end exactly at the terminator record. Unknown fields inside an entry are
// skipped.
func (v *Vector) UnmarshalBinary(data []byte) error {
	var out Vector

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("failed to read entry tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldEntry || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		raw, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return fmt.Errorf("failed to read entry %d: %w", len(out), protowire.ParseError(n))
		}
		data = data[n:]

		e, err := unmarshalEntry(raw)
		if err != nil {
			return fmt.Errorf("entry %d: %w", len(out), err)
		}
		out = append(out, e)

		if e.Tag == Null {
			if len(data) > 0 {
				return ErrTrailingData
			}
			*v = out
			return nil
		}
	}
	return ErrMissingTerminator
}

func unmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	kindSet := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Entry{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldTag && typ == protowire.VarintType:
			t, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Entry{}, protowire.ParseError(n)
			}
			e.Tag = Tag(int32(uint32(t)))
			b = b[n:]
		case num == fieldInt && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Entry{}, protowire.ParseError(n)
			}
			e.Kind, e.Int, kindSet = KindInt, protowire.DecodeZigZag(x), true
			b = b[n:]
		case num == fieldStr && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return Entry{}, protowire.ParseError(n)
			}
			e.Kind, e.Str, kindSet = KindString, s, true
			b = b[n:]
		case num == fieldFunc && typ == protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Entry{}, protowire.ParseError(n)
			}
			e.Kind, kindSet = KindFunc, true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Entry{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if !kindSet && e.Tag != Null {
		return Entry{}, fmt.Errorf("%s: %w", e.Tag, ErrKindMismatch)
	}
	return e, nil
}
