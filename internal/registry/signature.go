package registry

import "reflect"

// Signature describes the func type of a capability.
type Signature struct {
	typ reflect.Type
}

// SignatureOf captures the signature of fn. A nil or non-func value yields
// the zero Signature.
func SignatureOf(fn any) Signature {
	if fn == nil {
		return Signature{}
	}
	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return Signature{}
	}
	return Signature{typ: t}
}

// SignatureFor returns the signature of the func type F.
func SignatureFor[F any]() Signature {
	t := reflect.TypeFor[F]()
	if t.Kind() != reflect.Func {
		return Signature{}
	}
	return Signature{typ: t}
}

// IsZero reports whether s describes no func type.
func (s Signature) IsZero() bool {
	return s.typ == nil
}

// Equal reports whether both signatures describe the same func type.
func (s Signature) Equal(other Signature) bool {
	return s.typ == other.typ
}

func (s Signature) String() string {
	if s.typ == nil {
		return "<none>"
	}
	return s.typ.String()
}
