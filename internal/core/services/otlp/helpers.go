package otlp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
)

// unknownService is the fallback when a resource carries no service.name.
const unknownService = "unknown"

// keyValuesToMap converts an OTLP KeyValue array to map[string]string. All
// values are stringified for Map(String, String) columns.
func keyValuesToMap(kvs []*commonpb.KeyValue) map[string]string {
	result := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		result[kv.GetKey()] = anyValueToString(kv.GetValue())
	}
	return result
}

// anyValueToString converts an OTLP AnyValue to string. Complex types
// (arrays, kvlists) are JSON-encoded; bytes are hex-encoded.
func anyValueToString(value *commonpb.AnyValue) string {
	if value == nil {
		return ""
	}

	switch v := value.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_IntValue:
		return fmt.Sprintf("%d", v.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return fmt.Sprintf("%g", v.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return fmt.Sprintf("%t", v.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(v.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		jsonBytes, _ := json.Marshal(anyValueArrayToStrings(v.ArrayValue))
		return string(jsonBytes)
	case *commonpb.AnyValue_KvlistValue:
		jsonBytes, _ := json.Marshal(keyValuesToMap(v.KvlistValue.GetValues()))
		return string(jsonBytes)
	default:
		return ""
	}
}

func anyValueArrayToStrings(arrayValue *commonpb.ArrayValue) []string {
	if arrayValue == nil {
		return []string{}
	}
	values := arrayValue.GetValues()
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = anyValueToString(v)
	}
	return result
}

// resourceAttributes converts an OTLP Resource to map[string]string.
func resourceAttributes(resource *resourcepb.Resource) map[string]string {
	if resource == nil {
		return make(map[string]string)
	}
	return keyValuesToMap(resource.GetAttributes())
}

// serviceName pulls service.name out of resource attributes, falling back
// to "unknown".
func serviceName(resourceAttrs map[string]string) string {
	if name, ok := resourceAttrs["service.name"]; ok && name != "" {
		return name
	}
	return unknownService
}

// mergeAttributes merges resource attributes with record attributes; on key
// collision the record attribute wins.
func mergeAttributes(resourceAttrs, recordAttrs map[string]string) map[string]string {
	merged := make(map[string]string, len(resourceAttrs)+len(recordAttrs))
	for k, v := range resourceAttrs {
		merged[k] = v
	}
	for k, v := range recordAttrs {
		merged[k] = v
	}
	return merged
}

// encodeID hex-encodes a trace or span ID, treating all-zero IDs as absent.
func encodeID(id []byte) string {
	if len(id) == 0 {
		return ""
	}
	zero := true
	for _, b := range id {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return ""
	}
	return hex.EncodeToString(id)
}
