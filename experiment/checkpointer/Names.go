package checkpointer

import (
	"fmt"
	"time"
)

// nameEnumerator enumerates model names
type nameEnumerator struct {
	i    int
	name string
}

// next returns the next consecutive enumerated name
func (e *nameEnumerator) next() string {
	e.i++
	return fmt.Sprintf("%v-%v", e.name, e.i)
}

// NameEnumerator returns a function which will return model names with
// a counter suffix. Each time the returned function is called, the
// counter suffix will be one higher than on the previous call.
func NameEnumerator(start int, name string) func() string {
	enum := nameEnumerator{i: start, name: name}
	return enum.next
}

// NameTimer returns a function which will append to a model name the
// number of nanoseconds since January 1, 1970.
func NameTimer(name string) func() string {
	return func() string {
		return fmt.Sprintf("%v-%v", name, time.Now().UnixNano())
	}
}

// FixedName returns a function which always returns name, so that
// every checkpoint replaces the previous one
func FixedName(name string) func() string {
	return func() string {
		return name
	}
}
