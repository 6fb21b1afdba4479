package browser

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installDOM exposes document and window globals to the restricted-side
// runtime. The surface is intentionally small: island and inline scripts
// need to find their elements, mutate attributes (clearing the hydration
// marker above all), and read text. Anything richer belongs in a real
// browser, not in this bridge.
func installDOM(rt *Runtime, doc *Document, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("dom")
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		document := vm.NewObject()

		if err := document.Set("getElementById", func(id string) goja.Value {
			el := doc.GetElementByID(id)
			if el == nil {
				return goja.Null()
			}
			return elementObject(vm, el)
		}); err != nil {
			return err
		}

		// document.evaluate takes an XPath expression, matching what the
		// real DOM offers for structured queries.
		if err := document.Set("evaluate", func(expr string) goja.Value {
			els, err := doc.Evaluate(expr)
			if err != nil {
				log.Warn("document.evaluate failed", zap.String("expr", expr), zap.Error(err))
				panic(vm.NewTypeError("document.evaluate: %s", err.Error()))
			}
			items := make([]any, 0, len(els))
			for _, el := range els {
				items = append(items, elementObject(vm, el))
			}
			return vm.NewArray(items...)
		}); err != nil {
			return err
		}

		if err := document.Set("body", elementObject(vm, doc.Body())); err != nil {
			return err
		}

		if err := vm.Set("document", document); err != nil {
			return err
		}

		window := vm.NewObject()
		if err := window.Set("document", document); err != nil {
			return err
		}
		if err := vm.Set("window", window); err != nil {
			return err
		}
		return vm.Set("self", window)
	})
}

// elementObject wraps an Element handle for JavaScript consumers.
func elementObject(vm *goja.Runtime, el *Element) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("tagName", el.TagName())
	_ = obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := el.GetAttr(name); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(name, value string) {
		el.SetAttr(name, value)
	})
	_ = obj.Set("removeAttribute", func(name string) {
		el.RemoveAttr(name)
	})
	_ = obj.Set("hasAttribute", func(name string) bool {
		return el.HasAttr(name)
	})
	_ = obj.Set("evaluate", func(expr string) goja.Value {
		els, err := el.Evaluate(expr)
		if err != nil {
			panic(vm.NewTypeError("element.evaluate: %s", err.Error()))
		}
		items := make([]any, 0, len(els))
		for _, child := range els {
			items = append(items, elementObject(vm, child))
		}
		return vm.NewArray(items...)
	})
	_ = obj.DefineAccessorProperty("textContent",
		vm.ToValue(func() string { return el.TextContent() }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}
