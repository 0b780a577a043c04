package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/semshade/mapping"
)

var (
	// ErrTypeNotFound is returned by a Resolver that has no such type.
	ErrTypeNotFound = errors.New("type not found")

	// ErrSameNamespace is returned when a name mapper would map a namespace
	// onto itself.
	ErrSameNamespace = errors.New("from and to namespace are the same")

	// ErrTypeNotResolvable is returned when a mapped type cannot be found
	// under the target namespace.
	ErrTypeNotResolvable = errors.New("type not resolvable under target namespace")

	// ErrNotRelocated is returned by a MustDiffer mapper for a type that
	// maps onto itself.
	ErrNotRelocated = errors.New("type not relocated")
)

// MappingError is a name mapping configuration error. From and To are the
// source and intended target names.
type MappingError struct {
	From string
	To   string
	Err  error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("unable to map %s to %s: %v", e.From, e.To, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// IsMappingError reports whether err is or wraps a *MappingError.
func IsMappingError(err error) bool {
	var me *MappingError
	return errors.As(err, &me)
}

// Resolver finds the structural description of a type by binary name.
// Implementations return an error matching ErrTypeNotFound for unknown
// types.
type Resolver interface {
	Resolve(name string) (*Type, error)
}

// TypeSet is an in-memory Resolver.
type TypeSet map[string]*Type

// NewTypeSet returns a TypeSet holding types.
func NewTypeSet(types ...*Type) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s.Add(t)
	}
	return s
}

// Add registers t under its name, replacing any earlier entry.
func (s TypeSet) Add(t *Type) {
	s[t.Name] = t
}

// Resolve implements Resolver.
func (s TypeSet) Resolve(name string) (*Type, error) {
	if t, ok := s[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrTypeNotFound)
}

// NameMapper translates a type reference from the original namespace to the
// relocated one.
type NameMapper func(TypeRef) (TypeRef, error)

// NewNameMapper returns a mapper that moves types whose name starts with
// from + "." under to. Unlike the relocators, which match bare prefixes,
// the mapper requires the namespace boundary. Arrays map element-wise;
// primitives and other types pass through. Every mapped type must resolve
// through resolver.
func NewNameMapper(from, to string, resolver Resolver) (NameMapper, error) {
	if from == "" || to == "" {
		return nil, &MappingError{From: from, To: to, Err: mapping.ErrEmptyNamespace}
	}
	if from == to {
		return nil, &MappingError{From: from, To: to, Err: ErrSameNamespace}
	}
	prefix := from + "."
	return func(ref TypeRef) (TypeRef, error) {
		if ref.IsPrimitive() || !strings.HasPrefix(ref.Name, prefix) {
			return ref, nil
		}
		target := to + "." + ref.Name[len(prefix):]
		if _, err := resolver.Resolve(target); err != nil {
			return TypeRef{}, &MappingError{
				From: ref.Name,
				To:   target,
				Err:  fmt.Errorf("%w: %w", ErrTypeNotResolvable, err),
			}
		}
		return TypeRef{Name: target, Dims: ref.Dims}, nil
	}, nil
}

// MustDiffer wraps mapper so that a type mapping onto itself is an error.
func MustDiffer(mapper NameMapper) NameMapper {
	return func(ref TypeRef) (TypeRef, error) {
		out, err := mapper(ref)
		if err != nil {
			return TypeRef{}, err
		}
		if out == ref {
			return TypeRef{}, fmt.Errorf("type %s: %w", ref, ErrNotRelocated)
		}
		return out, nil
	}
}

func mapAll(mapper NameMapper, refs []TypeRef) ([]TypeRef, error) {
	out := make([]TypeRef, len(refs))
	for i, r := range refs {
		m, err := mapper(r)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
