// Package mask hides sensitive values before they are logged or published.
//
// Fields are marked sensitive with the `mask:"true"` struct tag.
package mask

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const tagName = "mask"

// StructToOrdMap returns a flat ordered map of the struct fields of v with
// sensitive values masked. Nested struct fields are flattened using dotted keys.
// Field names are determined by priority: json tag > yaml tag > struct field name.
// Fields with json:"-" or yaml:"-" are excluded from the output.
func StructToOrdMap(v any) *orderedmap.OrderedMap[string, any] {
	if v == nil {
		return nil
	}
	return flatten(reflect.ValueOf(v), "")
}

func flatten(val reflect.Value, prefix string) *orderedmap.OrderedMap[string, any] {
	om := orderedmap.New[string, any]()

	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			om.Set(prefix, nil)
			return om
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		om.Set(prefix, val.Interface())
		return om
	}

	typ := val.Type()
	for i := range val.NumField() {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		fieldName, _, skip := extractFieldName(fieldType)
		if skip {
			continue
		}

		name := fieldName
		if prefix != "" {
			name = prefix + "." + name
		}

		switch {
		case shouldMask(fieldType):
			om.Set(name, maskValue(field))
		case isStruct(field):
			nested := flatten(field, name)
			for pair := nested.Oldest(); pair != nil; pair = pair.Next() {
				om.Set(pair.Key, pair.Value)
			}
		default:
			om.Set(name, field.Interface())
		}
	}

	return om
}

// Redact returns a JSON friendly copy of v in which every field tagged
// `mask:"true"` is replaced, at any depth. Structs become ordered maps keyed
// by their json names, maps and slices are walked recursively and values
// implementing json.Marshaler are kept as they are.
func Redact(v any) any {
	if v == nil {
		return nil
	}
	return redact(reflect.ValueOf(v))
}

// RedactAs is like Redact and additionally hides the map keys that name a
// `mask:"true"` field of the struct type shape, at any depth. It is used when
// a value described by shape arrives in another form, such as a decoded map.
func RedactAs(v any, shape reflect.Type) any {
	out := Redact(v)
	if shape == nil {
		return out
	}
	return applyShape(out, shape)
}

func applyShape(v any, shape reflect.Type) any {
	for shape.Kind() == reflect.Pointer {
		shape = shape.Elem()
	}
	if shape == timeType || implementsMarshaler(shape) || implementsMarshaler(reflect.PointerTo(shape)) {
		return v
	}

	//nolint:exhaustive // only containers carry nested fields
	switch shape.Kind() {
	case reflect.Struct:
		fields := shapeFields(shape)
		switch m := v.(type) {
		case map[string]any:
			for key, fv := range m {
				m[key] = applyField(fields, key, fv)
			}
		case *orderedmap.OrderedMap[string, any]:
			for pair := m.Oldest(); pair != nil; pair = pair.Next() {
				pair.Value = applyField(fields, pair.Key, pair.Value)
			}
		}
	case reflect.Slice, reflect.Array:
		if s, ok := v.([]any); ok {
			for i := range s {
				s[i] = applyShape(s[i], shape.Elem())
			}
		}
	case reflect.Map:
		if m, ok := v.(map[string]any); ok {
			for key, fv := range m {
				m[key] = applyShape(fv, shape.Elem())
			}
		}
	}
	return v
}

func applyField(fields map[string]reflect.StructField, key string, v any) any {
	field, ok := fields[strings.ToLower(key)]
	if !ok || v == nil {
		return v
	}
	if shouldMask(field) {
		if str, isStr := v.(string); isStr && isPlaceholder(str) {
			return v
		}
		return maskValue(reflect.ValueOf(v))
	}
	return applyShape(v, field.Type)
}

func isPlaceholder(s string) bool {
	return strings.HasPrefix(s, "***masked-") && strings.HasSuffix(s, "***")
}

// shapeFields indexes the exported fields of a struct type by lowercased
// output name, inlining embedded structs the way encoding/json does.
func shapeFields(shape reflect.Type) map[string]reflect.StructField {
	fields := make(map[string]reflect.StructField, shape.NumField())
	for i := range shape.NumField() {
		field := shape.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, skip := extractFieldName(field)
		if skip {
			continue
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if field.Anonymous && !hasExplicitName(field) && ft.Kind() == reflect.Struct {
			for k, f := range shapeFields(ft) {
				if _, taken := fields[k]; !taken {
					fields[k] = f
				}
			}
			continue
		}
		fields[strings.ToLower(name)] = field
	}
	return fields
}

//nolint:gochecknoglobals // type lookups used on every call
var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	timeType          = reflect.TypeFor[time.Time]()
)

func redact(val reflect.Value) any {
	if !val.IsValid() {
		return nil
	}

	if val.Kind() == reflect.Interface || val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		if val.Kind() == reflect.Pointer && implementsMarshaler(val.Type()) {
			return val.Interface()
		}
		return redact(val.Elem())
	}

	if val.Type() == timeType || implementsMarshaler(val.Type()) {
		return val.Interface()
	}

	//nolint:exhaustive // remaining kinds are returned as they are
	switch val.Kind() {
	case reflect.Struct:
		om := orderedmap.New[string, any]()
		redactStruct(val, om)
		return om
	case reflect.Map:
		if val.IsNil() || val.Type().Key().Kind() != reflect.String {
			return val.Interface()
		}
		out := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = redact(iter.Value())
		}
		return out
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && (val.IsNil() || val.Type().Elem().Kind() == reflect.Uint8) {
			return val.Interface()
		}
		out := make([]any, val.Len())
		for i := range val.Len() {
			out[i] = redact(val.Index(i))
		}
		return out
	default:
		return val.Interface()
	}
}

func redactStruct(val reflect.Value, om *orderedmap.OrderedMap[string, any]) {
	typ := val.Type()
	for i := range val.NumField() {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		name, omitEmpty, skip := extractFieldName(fieldType)
		if skip || (omitEmpty && field.IsZero()) {
			continue
		}

		// embedded structs without an explicit name are inlined like encoding/json does
		if fieldType.Anonymous && !hasExplicitName(fieldType) && isStruct(field) {
			if field.Kind() == reflect.Pointer {
				field = field.Elem()
			}
			redactStruct(field, om)
			continue
		}

		if shouldMask(fieldType) {
			om.Set(name, maskValue(field))
			continue
		}
		om.Set(name, redact(field))
	}
}

func implementsMarshaler(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

func isStruct(val reflect.Value) bool {
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return false
		}
		return val.Elem().Kind() == reflect.Struct
	}
	return val.Kind() == reflect.Struct
}

func shouldMask(field reflect.StructField) bool {
	return strings.EqualFold(field.Tag.Get(tagName), "true")
}

func maskValue(val reflect.Value) any {
	//nolint:exhaustive // remaining kinds cannot be nil
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	case reflect.Slice, reflect.Map:
		if val.IsNil() {
			return nil
		}
	}

	// zero values carry no secret
	if val.IsZero() {
		return val.Interface()
	}

	return maskByKind(val)
}

func maskByKind(val reflect.Value) any {
	//nolint:exhaustive // default case handles remaining kinds
	switch val.Kind() {
	case reflect.String:
		return "***masked-string***"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "***masked-int***"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "***masked-uint***"
	case reflect.Float32, reflect.Float64:
		return "***masked-float***"
	case reflect.Bool:
		return "***masked-bool***"
	case reflect.Struct:
		return "***masked-struct***"
	case reflect.Slice, reflect.Array:
		return "***masked-slice***"
	case reflect.Map:
		return "***masked-map***"
	default:
		return fmt.Sprintf("***masked-%s***", val.Kind())
	}
}

func hasExplicitName(field reflect.StructField) bool {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return false
	}
	name, _, _ := strings.Cut(tag, ",")
	return name != ""
}

// extractFieldName returns the output name of field, whether it is omitempty,
// and whether it must be skipped. json tags win over yaml tags which win over the Go name.
func extractFieldName(field reflect.StructField) (string, bool, bool) {
	for _, tagKey := range []string{"json", "yaml"} {
		tag, ok := field.Tag.Lookup(tagKey)
		if !ok {
			continue
		}
		if tag == "-" {
			return "", false, true
		}
		name, opts, _ := strings.Cut(tag, ",")
		omitEmpty := strings.Contains(opts, "omitempty")
		if name != "" {
			return name, omitEmpty, false
		}
		return field.Name, omitEmpty, false
	}
	return field.Name, false, false
}
