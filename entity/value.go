package entity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ValueKind enumerates the value types a table store can hold.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindInt32
	KindInt64
	KindFloat64
	KindBool
	KindGUID
	KindBinary
	// KindJSON holds a serialized JSON document for values the store cannot type natively.
	KindJSON
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindGUID:
		return "guid"
	case KindBinary:
		return "binary"
	case KindJSON:
		return "json"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// TypedValue is a closed variant over ValueKind. The zero value is an empty string.
type TypedValue struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	bin  []byte
	guid uuid.UUID
}

func StringValue(s string) TypedValue { return TypedValue{kind: KindString, str: s} }
func Int32Value(v int32) TypedValue { return TypedValue{kind: KindInt32, num: int64(v)} }
func Int64Value(v int64) TypedValue { return TypedValue{kind: KindInt64, num: v} }
func Float64Value(v float64) TypedValue { return TypedValue{kind: KindFloat64, flt: v} }
func GUIDValue(v uuid.UUID) TypedValue { return TypedValue{kind: KindGUID, guid: v} }
func JSONValue(doc string) TypedValue { return TypedValue{kind: KindJSON, str: doc} }

func BoolValue(v bool) TypedValue {
	if v {
		return TypedValue{kind: KindBool, num: 1}
	}
	return TypedValue{kind: KindBool}
}

func BinaryValue(v []byte) TypedValue {
	return TypedValue{kind: KindBinary, bin: append([]byte(nil), v...)}
}

func (v TypedValue) Kind() ValueKind { return v.kind }

// Str returns the payload of a string or JSON value.
func (v TypedValue) Str() string { return v.str }

// Int returns the payload of an int32 or int64 value.
func (v TypedValue) Int() int64 { return v.num }

func (v TypedValue) Float() float64 { return v.flt }
func (v TypedValue) Bool() bool { return v.num != 0 }
func (v TypedValue) GUID() uuid.UUID { return v.guid }
func (v TypedValue) Bytes() []byte { return append([]byte(nil), v.bin...) }
func (v TypedValue) IsJSON() bool { return v.kind == KindJSON }
func (v TypedValue) IsNumeric() bool { return v.kind == KindInt32 || v.kind == KindInt64 || v.kind == KindFloat64 }

// Any returns the value as a plain Go value. JSON blobs stay serialized strings.
func (v TypedValue) Any() any {
	switch v.kind {
	case KindInt32:
		return int32(v.num)
	case KindInt64:
		return v.num
	case KindFloat64:
		return v.flt
	case KindBool:
		return v.num != 0
	case KindGUID:
		return v.guid
	case KindBinary:
		return v.Bytes()
	default:
		return v.str
	}
}

// Size estimates the stored size of the value in bytes.
func (v TypedValue) Size() int {
	switch v.kind {
	case KindString, KindJSON:
		return 2 * len(v.str)
	case KindInt32:
		return 4
	case KindInt64, KindFloat64:
		return 8
	case KindBool:
		return 1
	case KindGUID:
		return 16
	case KindBinary:
		return len(v.bin)
	default:
		return 0
	}
}

func (v TypedValue) String() string {
	switch v.kind {
	case KindString, KindJSON:
		return v.str
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindGUID:
		return v.guid.String()
	case KindBinary:
		return base64.StdEncoding.EncodeToString(v.bin)
	default:
		return ""
	}
}

type typedValueJSON struct {
	Type  string          `json:"t"`
	Value json.RawMessage `json:"v"`
}

// MarshalJSON encodes the value with its kind so that it can be decoded losslessly.
func (v TypedValue) MarshalJSON() ([]byte, error) {
	var raw []byte
	var err error
	switch v.kind {
	case KindString, KindJSON:
		raw, err = json.Marshal(v.str)
	case KindInt32, KindInt64:
		raw = strconv.AppendInt(nil, v.num, 10)
	case KindFloat64:
		raw, err = json.Marshal(v.flt)
	case KindBool:
		raw = strconv.AppendBool(nil, v.Bool())
	case KindGUID:
		raw, err = json.Marshal(v.guid.String())
	case KindBinary:
		raw, err = json.Marshal(v.bin)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(typedValueJSON{Type: v.kind.String(), Value: raw})
}

func (v *TypedValue) UnmarshalJSON(data []byte) error {
	var tv typedValueJSON
	if err := json.Unmarshal(data, &tv); err != nil {
		return err
	}

	switch tv.Type {
	case "string", "json":
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return err
		}
		if tv.Type == "json" {
			*v = JSONValue(s)
		} else {
			*v = StringValue(s)
		}
	case "int32", "int64":
		n, err := strconv.ParseInt(string(tv.Value), 10, 64)
		if err != nil {
			return err
		}
		if tv.Type == "int32" {
			*v = Int32Value(int32(n))
		} else {
			*v = Int64Value(n)
		}
	case "float64":
		var f float64
		if err := json.Unmarshal(tv.Value, &f); err != nil {
			return err
		}
		*v = Float64Value(f)
	case "bool":
		var b bool
		if err := json.Unmarshal(tv.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case "guid":
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return err
		}
		*v = GUIDValue(id)
	case "binary":
		var b []byte
		if err := json.Unmarshal(tv.Value, &b); err != nil {
			return err
		}
		*v = BinaryValue(b)
	default:
		return fmt.Errorf("unknown value type %q", tv.Type)
	}
	return nil
}
