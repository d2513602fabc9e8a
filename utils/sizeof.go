package utils

import "reflect"

// SizeOf estimates the in-memory footprint of v by walking it with
// reflection, following pointers, slices, maps and struct fields. It is an
// estimate, not an accounting-grade measurement: data reached through the
// same pointer more than once is counted once, but maps, slices and strings
// that share backing storage are counted once per path, and it does not
// account for allocator overhead or alignment padding.
func SizeOf(v interface{}) int64 {
	if v == nil {
		return 0
	}
	seen := map[uintptr]bool{}
	return sizeOfValue(reflect.ValueOf(v), seen)
}

func sizeOfValue(v reflect.Value, seen map[uintptr]bool) int64 {
	if !v.IsValid() {
		return 0
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return int64(v.Type().Size())
		}
		if v.Kind() == reflect.Ptr {
			addr := v.Pointer()
			if seen[addr] {
				return int64(v.Type().Size())
			}
			seen[addr] = true
		}
		return int64(v.Type().Size()) + sizeOfValue(v.Elem(), seen)

	case reflect.Slice:
		if v.IsNil() {
			return int64(v.Type().Size())
		}
		size := int64(v.Type().Size())
		for i := 0; i < v.Len(); i++ {
			size += sizeOfValue(v.Index(i), seen)
		}
		return size

	case reflect.Array:
		size := int64(0)
		for i := 0; i < v.Len(); i++ {
			size += sizeOfValue(v.Index(i), seen)
		}
		return size

	case reflect.Map:
		size := int64(v.Type().Size())
		if v.IsNil() {
			return size
		}
		iter := v.MapRange()
		for iter.Next() {
			size += sizeOfValue(iter.Key(), seen)
			size += sizeOfValue(iter.Value(), seen)
		}
		return size

	case reflect.Struct:
		size := int64(0)
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if !field.CanInterface() {
				size += int64(field.Type().Size())
				continue
			}
			size += sizeOfValue(field, seen)
		}
		return size

	case reflect.String:
		return int64(v.Type().Size()) + int64(v.Len())

	default:
		return int64(v.Type().Size())
	}
}
