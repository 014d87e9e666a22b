// Package codec converts native Go values to and from the DynamoDB
// tagged-union attribute representation.
//
// Numbers travel as decimal strings on the wire. Decoding yields int64 when
// the string carries no decimal point and float64 otherwise, so a value
// round-trips exactly as long as it is representable in the native model.
// The SDK's attributevalue feature package is not used here: the decimal
// string convention and top-level nil stripping are part of the contract.
package codec

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Marshal converts a native record to a DynamoDB item. Top-level nil values
// are omitted entirely; DynamoDB rejects null partition attributes and the
// flattened records simply drop absent fields.
func Marshal(item map[string]interface{}) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for key, value := range item {
		if value == nil {
			continue
		}
		out[key] = MarshalValue(value)
	}
	return out
}

// MarshalValue converts a single native value to an attribute value. Nested
// nils become explicit NULL members, unlike top-level record fields.
func MarshalValue(value interface{}) types.AttributeValue {
	if value == nil {
		return &types.AttributeValueMemberNULL{Value: true}
	}

	switch v := value.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: v}
	case bool:
		// Checked before the numeric kinds so booleans never encode as numbers
		return &types.AttributeValueMemberBOOL{Value: v}
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
	case float64:
		return &types.AttributeValueMemberN{Value: formatFloat(v)}
	case []interface{}:
		return marshalList(v)
	case map[string]interface{}:
		return &types.AttributeValueMemberM{Value: Marshal(v)}
	}

	return marshalReflect(value)
}

// marshalReflect handles the remaining numeric kinds and typed slices/maps
func marshalReflect(value interface{}) types.AttributeValue {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(rv.Int(), 10)}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &types.AttributeValueMemberN{Value: strconv.FormatUint(rv.Uint(), 10)}
	case reflect.Float32, reflect.Float64:
		return &types.AttributeValueMemberN{Value: formatFloat(rv.Float())}
	case reflect.Slice, reflect.Array:
		values := make([]types.AttributeValue, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			values = append(values, MarshalValue(rv.Index(i).Interface()))
		}
		return &types.AttributeValueMemberL{Value: values}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			entries := make(map[string]types.AttributeValue, rv.Len())
			for _, key := range rv.MapKeys() {
				entry := rv.MapIndex(key).Interface()
				if entry == nil {
					entries[key.String()] = &types.AttributeValueMemberNULL{Value: true}
					continue
				}
				entries[key.String()] = MarshalValue(entry)
			}
			return &types.AttributeValueMemberM{Value: entries}
		}
	}

	// Anything unrecognized falls back to its string form
	return &types.AttributeValueMemberS{Value: fmt.Sprintf("%v", value)}
}

func marshalList(values []interface{}) types.AttributeValue {
	out := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		out = append(out, MarshalValue(v))
	}
	return &types.AttributeValueMemberL{Value: out}
}

// formatFloat renders a float as a decimal string, keeping the decimal point
// so the value decodes back to a float
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Unmarshal converts a DynamoDB item back to a native record
func Unmarshal(item map[string]types.AttributeValue) map[string]interface{} {
	out := make(map[string]interface{}, len(item))
	for key, value := range item {
		out[key] = UnmarshalValue(value)
	}
	return out
}

// UnmarshalValue converts a single attribute value back to its native form.
// A member type outside the value model is a programmer error and panics.
func UnmarshalValue(value types.AttributeValue) interface{} {
	switch v := value.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return parseNumber(v.Value)
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberL:
		out := make([]interface{}, 0, len(v.Value))
		for _, entry := range v.Value {
			out = append(out, UnmarshalValue(entry))
		}
		return out
	case *types.AttributeValueMemberM:
		return Unmarshal(v.Value)
	}
	panic(fmt.Sprintf("codec: unsupported attribute value type %T", value))
}

// parseNumber decodes the wire decimal string: int64 when there is no
// decimal point, float64 otherwise (exponent forms also land on float64)
func parseNumber(s string) interface{} {
	if !strings.Contains(s, ".") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic(fmt.Sprintf("codec: malformed number %q", s))
	}
	return f
}
