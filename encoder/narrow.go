package encoder

import (
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/thisisjab/logtable/entity"
)

// Narrow maps a Go value onto a store value type. It reports false for values
// that have no store representation; callers drop those.
func Narrow(v any) (entity.TypedValue, bool) {
	switch x := v.(type) {
	case string:
		return entity.StringValue(x), true
	case int32:
		return entity.Int32Value(x), true
	case int64:
		return entity.Int64Value(x), true
	case int:
		return entity.Int64Value(int64(x)), true
	case float64:
		return entity.Float64Value(x), true
	case float32:
		return entity.Float64Value(float64(x)), true
	case bool:
		return entity.BoolValue(x), true
	case uuid.UUID:
		return entity.GUIDValue(x), true
	case []byte:
		return entity.BinaryValue(x), true
	case nil:
		return entity.TypedValue{}, false
	}

	return narrowEnum(reflect.ValueOf(v))
}

// narrowEnum handles the remaining integer kinds, including named integer
// types (Go's enums). Values up to 32 bits wide become int32, wider ones int64.
func narrowEnum(rv reflect.Value) (entity.TypedValue, bool) {
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return entity.Int32Value(int32(rv.Int())), true
	case reflect.Uint8, reflect.Uint16:
		return entity.Int32Value(int32(rv.Uint())), true
	case reflect.Int, reflect.Int64:
		return entity.Int64Value(rv.Int()), true
	case reflect.Uint32:
		return entity.Int64Value(int64(rv.Uint())), true
	case reflect.Uint, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return entity.TypedValue{}, false
		}
		return entity.Int64Value(int64(u)), true
	default:
		return entity.TypedValue{}, false
	}
}
