package registry

import (
	"fmt"
	"reflect"
)

// Capability is one published callable.
type Capability struct {
	Name      string
	Category  Category
	Signature Signature
	fn        reflect.Value
}

// Func returns the stored callable.
func (c Capability) Func() any {
	if !c.fn.IsValid() {
		return nil
	}
	return c.fn.Interface()
}

// Call invokes the capability without knowing its static type. Arguments are
// checked against the signature before the call.
func (c Capability) Call(args ...any) ([]any, error) {
	if !c.fn.IsValid() {
		return nil, fmt.Errorf("call %s: %w", c.Name, ErrInvalidCapability)
	}
	t := c.fn.Type()
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("call %s: %w: want at least %d arguments, got %d", c.Name, ErrBadArguments, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("call %s: %w: want %d arguments, got %d", c.Name, ErrBadArguments, fixed, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var want reflect.Type
		if t.IsVariadic() && i >= fixed {
			want = t.In(fixed).Elem()
		} else {
			want = t.In(i)
		}
		v, err := argValue(arg, want)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w: argument %d: %v", c.Name, ErrBadArguments, i, err)
		}
		in[i] = v
	}

	out := c.fn.Call(in)
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

func argValue(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch want.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(want), nil
		default:
			return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", want)
		}
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), want)
	}
	return v, nil
}
