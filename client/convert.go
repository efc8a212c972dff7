package client

import (
	"database/sql/driver"
	"fmt"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// valueToParam converts a database/sql/driver bound value into a typed
// wire.Param, mirroring internal/backend/mysql.go's opposite conversion
// on the server side (MySQL column value -> wire.Cell).
func valueToParam(name string, v driver.Value) wire.Param {
	switch val := v.(type) {
	case nil:
		return wire.Param{Name: name, Type: wire.TypeNull}
	case bool:
		return wire.Param{Name: name, Type: wire.TypeBool, Bool: val}
	case int64:
		return wire.Param{Name: name, Type: wire.TypeInt64, Int: val}
	case float64:
		return wire.Param{Name: name, Type: wire.TypeFloat64, Float: val}
	case []byte:
		return wire.Param{Name: name, Type: wire.TypeBytes, Bytes: val}
	case string:
		return wire.Param{Name: name, Type: wire.TypeString, Str: val}
	default:
		return wire.Param{Name: name, Type: wire.TypeString, Str: fmt.Sprintf("%v", val)}
	}
}

func namedValuesToParams(args []driver.NamedValue) []wire.Param {
	params := make([]wire.Param, len(args))
	for i, a := range args {
		params[i] = valueToParam(a.Name, a.Value)
	}
	return params
}

// cellToValue converts a wire.Cell back into a database/sql/driver.Value
// for Rows.Next, the inverse of valueToParam.
func cellToValue(c wire.Cell) driver.Value {
	switch c.Type {
	case wire.TypeNull:
		return nil
	case wire.TypeBool:
		return c.Bool
	case wire.TypeInt64:
		return c.Int
	case wire.TypeFloat64:
		return c.Float
	case wire.TypeBytes:
		return c.Bytes
	case wire.TypeString:
		return c.Str
	default:
		return nil
	}
}
