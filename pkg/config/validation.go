package config

import (
	"reflect"
	"strings"
	"time"
)

// RedactedValue replaces secret values in Redacted output.
const RedactedValue = "***"

// Redacted returns the configuration as nested maps keyed by mapstructure names, ready
// for YAML encoding. Fields tagged redact:"true" are masked when set, and so is every
// field the secrets file provided. secrets may be nil.
func (c *Config) Redacted(secrets *Config) map[string]any {
	var mask reflect.Value
	if secrets != nil {
		mask = reflect.ValueOf(secrets).Elem()
	}
	return structToMap(reflect.ValueOf(c).Elem(), mask)
}

func structToMap(v, mask reflect.Value) map[string]any {
	out := make(map[string]any, v.NumField())
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanInterface() {
			continue
		}
		var maskValue reflect.Value
		if mask.IsValid() {
			maskValue = mask.Field(i)
		}

		name := strings.ToLower(field.Name)
		if tag := field.Tag.Get("mapstructure"); tag != "" && tag != "-" {
			name = tag
		}

		switch {
		case value.Kind() == reflect.Struct:
			out[name] = structToMap(value, maskValue)
		case field.Tag.Get("redact") == "true" && !value.IsZero(), shouldRedact(maskValue):
			out[name] = RedactedValue
		case value.Type() == reflect.TypeOf(time.Duration(0)):
			out[name] = time.Duration(value.Int()).String()
		default:
			out[name] = value.Interface()
		}
	}
	return out
}

func shouldRedact(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}

	switch v.Kind() {
	case reflect.String:
		return v.String() != ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return v.Float() != 0
	case reflect.Bool:
		return v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() > 0
	default:
		return false
	}
}
