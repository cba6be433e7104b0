package validation

import (
	"encoding/json"
	"errors"
	"reflect"
)

// FromJSON reports a JSON value of the wrong type as a field error on the key
// that held it. Any other decode error is returned unchanged.
func FromJSON(err error) error {
	var te *json.UnmarshalTypeError
	if !errors.As(err, &te) || te.Field == "" {
		return err
	}
	fe := FieldErrors{}
	fe.Add(te.Field, typeMessage(te.Type))
	return fe
}

func typeMessage(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "Invalid value."
	}
	switch t.Kind() {
	case reflect.String:
		return "Not a valid string."
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "A valid number is required."
	default:
		return "Invalid value."
	}
}
