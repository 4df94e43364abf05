package capability

import (
	"github.com/d5/tengo/v2"

	"github.com/vk/modforge/internal/model"
)

// KV exposes a read-only key/value store to the sandbox, seeded from the
// host invocation (--set pairs). Reads are library-approved, so no grant
// is required, and the capability produces no actions.
type KV struct {
	values map[string]string
}

// NewKV constructs the kv capability with the given seed values.
func NewKV(values map[string]string) *KV {
	if values == nil {
		values = map[string]string{}
	}
	return &KV{values: values}
}

// Name implements Capability.
func (k *KV) Name() string { return "kv" }

// Object implements Capability.
func (k *KV) Object() tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"get": method("kv.get", func(args ...tengo.Object) (tengo.Object, error) {
			key, err := stringArg(args, 0, "kv.get")
			if err != nil {
				return nil, err
			}
			val, ok := k.values[key]
			if !ok {
				return tengo.UndefinedValue, nil
			}
			return &tengo.String{Value: val}, nil
		}),
		"has": method("kv.has", func(args ...tengo.Object) (tengo.Object, error) {
			key, err := stringArg(args, 0, "kv.has")
			if err != nil {
				return nil, err
			}
			if _, ok := k.values[key]; ok {
				return tengo.TrueValue, nil
			}
			return tengo.FalseValue, nil
		}),
	}}
}

// Finalize implements Capability.
func (k *KV) Finalize() []model.Action { return nil }
