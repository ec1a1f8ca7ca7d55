package todo

// Field carries one optional value of a partial update. The zero value is
// absent; Null marks a field that was sent empty and must be cleared.
type Field[T any] struct {
	present bool
	null    bool
	value   T
}

func Omit[T any]() Field[T] {
	return Field[T]{}
}

func Null[T any]() Field[T] {
	return Field[T]{present: true, null: true}
}

func Set[T any](v T) Field[T] {
	return Field[T]{present: true, value: v}
}

func (f Field[T]) Present() bool {
	return f.present
}

func (f Field[T]) IsNull() bool {
	return f.present && f.null
}

// Get returns the value and whether the field carries one.
func (f Field[T]) Get() (T, bool) {
	if !f.present || f.null {
		var zero T
		return zero, false
	}
	return f.value, true
}

// Ptr converts a present field to the nullable form the store writes.
func (f Field[T]) Ptr() *T {
	v, ok := f.Get()
	if !ok {
		return nil
	}
	return &v
}
