package client

import (
	"bytes"
	"testing"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func TestValueToParamCoversDriverValueTypes(t *testing.T) {
	cases := []struct {
		in   interface{}
		want wire.CellType
	}{
		{nil, wire.TypeNull},
		{true, wire.TypeBool},
		{int64(7), wire.TypeInt64},
		{3.5, wire.TypeFloat64},
		{[]byte("abc"), wire.TypeBytes},
		{"hi", wire.TypeString},
	}
	for _, c := range cases {
		p := valueToParam("x", c.in)
		if p.Type != c.want {
			t.Errorf("valueToParam(%v).Type = %v, want %v", c.in, p.Type, c.want)
		}
	}
}

func TestCellToValueRoundTripsEachType(t *testing.T) {
	cells := []wire.Cell{
		{Type: wire.TypeNull},
		{Type: wire.TypeBool, Bool: true},
		{Type: wire.TypeInt64, Int: 42},
		{Type: wire.TypeFloat64, Float: 1.5},
		{Type: wire.TypeString, Str: "hi"},
		{Type: wire.TypeBytes, Bytes: []byte("abc")},
	}
	for _, c := range cells {
		v := cellToValue(c)
		switch c.Type {
		case wire.TypeNull:
			if v != nil {
				t.Errorf("expected nil for TypeNull, got %v", v)
			}
		case wire.TypeBool:
			if v != true {
				t.Errorf("expected true, got %v", v)
			}
		case wire.TypeInt64:
			if v != int64(42) {
				t.Errorf("expected 42, got %v", v)
			}
		case wire.TypeFloat64:
			if v != 1.5 {
				t.Errorf("expected 1.5, got %v", v)
			}
		case wire.TypeString:
			if v != "hi" {
				t.Errorf("expected \"hi\", got %v", v)
			}
		case wire.TypeBytes:
			if !bytes.Equal(v.([]byte), []byte("abc")) {
				t.Errorf("expected \"abc\" bytes, got %v", v)
			}
		}
	}
}
