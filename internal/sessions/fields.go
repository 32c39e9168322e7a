package sessions

import (
	"reflect"
	"strings"
	"sync"
)

var fieldCache sync.Map // reflect.Type -> map[string]bool

// fieldNames returns the JSON keys a struct type encodes to, including those
// of embedded structs.
func fieldNames[T any]() map[string]bool {
	t := reflect.TypeFor[T]()
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]bool)
	}

	names := make(map[string]bool)
	collectFields(t, names)
	fieldCache.Store(t, names)
	return names
}

func collectFields(t reflect.Type, names map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, names)
			continue
		}
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names[name] = true
	}
}
