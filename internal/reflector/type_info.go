// Package reflector derives stable message type names from Go types.
package reflector

import (
	"reflect"
	"sync"
)

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]string)
)

// NameOf returns the qualified type name ("pkg/path.Type") of x's dynamic type.
// Pointers are unwrapped so *T and T share a name.
func NameOf(x any) string {
	return NameForType(reflect.TypeOf(x))
}

// NameFor returns the qualified type name of T.
func NameFor[T any]() string {
	return NameForType(reflect.TypeFor[T]())
}

func NameForType(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	name, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return name
	}

	name = t.PkgPath() + "." + t.Name()
	if t.PkgPath() == "" {
		// builtin and unnamed types carry no package path
		name = t.String()
	}

	muCache.Lock()
	cache[t] = name
	muCache.Unlock()
	return name
}
