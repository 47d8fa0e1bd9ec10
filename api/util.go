package api

import (
	"reflect"

	"github.com/rs/zerolog/log"
)

const scrubbed = "******"

// Scrub blanks every field tagged sensitive, following nested structs and
// pointers to structs. Anything other than a pointer to a struct is left
// alone.
func Scrub(o interface{}) {
	v := reflect.ValueOf(o)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	scrubStruct(v.Elem())
}

func scrubStruct(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		sf := t.Field(i)
		if !f.CanSet() {
			continue
		}

		switch {
		case f.Kind() == reflect.Struct:
			scrubStruct(f)
		case f.Kind() == reflect.Ptr && !f.IsNil():
			scrubStruct(f.Elem())
		}

		if sf.Tag.Get("sensitive") != "" {
			blank(f, sf.Name)
		}
	}
}

func blank(f reflect.Value, name string) {
	switch f.Kind() {
	case reflect.String:
		f.SetString(scrubbed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(0)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f.SetUint(0)
	case reflect.Float32, reflect.Float64:
		f.SetFloat(0)
	case reflect.Bool:
		f.SetBool(false)
	default:
		log.Warn().
			Str("fieldName", name).
			Str("type", f.Kind().String()).
			Msg("field marked sensitive but was an unrecognized type")
	}
}
