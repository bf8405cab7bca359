package urlmangle

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// NewScriptTransform compiles a user-supplied JavaScript function of the
// shape `function(url) { return ...; }` into a Transform. Compilation
// happens here, at configuration load; a script that does not compile or
// does not evaluate to a function is a configuration error.
//
// The returned transform stays total: a runtime exception or a non-string
// result yields the input URL unchanged.
func NewScriptTransform(name, source string) (Transform, error) {
	vm := goja.New()
	value, err := vm.RunString("(" + source + ")")
	if err != nil {
		return nil, fmt.Errorf("script transform %q: %w", name, err)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("script transform %q does not evaluate to a function", name)
	}

	// goja runtimes are not safe for concurrent use.
	var mu sync.Mutex
	return func(url string) string {
		mu.Lock()
		defer mu.Unlock()
		out, err := fn(goja.Undefined(), vm.ToValue(url))
		if err != nil {
			return url
		}
		rewritten, ok := out.Export().(string)
		if !ok || rewritten == "" {
			return url
		}
		return rewritten
	}, nil
}
