// Package verify checks that a relocated type is structurally
// interchangeable with its original.
//
// Types are compared as pre-extracted descriptions (see FromClassFile), and
// every reference in the original is translated through a caller-supplied
// NameMapper before comparison. Differences are reported as diagnostics;
// only an incomplete mapping configuration is an error.
package verify

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Diagnostic is one structural difference. An empty list of diagnostics
// means the types are equivalent.
type Diagnostic struct {
	Kind    MemberKind
	Message string
}

func (d Diagnostic) String() string {
	return d.Message
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithConstructors limits constructor checks to those required returns
// true for.
func WithConstructors(required func(*Member) bool) Option {
	return func(v *Verifier) { v.constructors = required }
}

// WithMethods limits method checks to those required returns true for.
func WithMethods(required func(*Member) bool) Option {
	return func(v *Verifier) { v.methods = required }
}

// WithFields limits field checks to those required returns true for.
func WithFields(required func(*Member) bool) Option {
	return func(v *Verifier) { v.fields = required }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// Verifier compares original types with their relocated counterparts.
type Verifier struct {
	resolver     Resolver
	mapper       NameMapper
	constructors func(*Member) bool
	methods      func(*Member) bool
	fields       func(*Member) bool
	logger       *slog.Logger
}

// New returns a Verifier that finds relocated types through resolver.
func New(resolver Resolver, mapper NameMapper, opts ...Option) *Verifier {
	all := func(*Member) bool { return true }
	v := &Verifier{
		resolver:     resolver,
		mapper:       mapper,
		constructors: all,
		methods:      all,
		fields:       all,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Verify compares original with the type its name maps to. Diagnostics
// come in type, constructor, method, field order.
func (v *Verifier) Verify(original *Type) ([]Diagnostic, error) {
	ref, err := v.mapper(original.Ref())
	if err != nil {
		return nil, err
	}
	target, err := v.resolver.Resolve(ref.Name)
	if err != nil {
		return nil, &MappingError{From: original.Name, To: ref.Name, Err: fmt.Errorf("%w: %w", ErrTypeNotResolvable, err)}
	}

	c := &check{Verifier: v}
	c.typeFlags(original, target)
	for _, step := range []func(*Type, *Type) error{c.constructorsOf, c.methodsOf, c.fieldsOf} {
		if err := step(original, target); err != nil {
			return nil, err
		}
	}
	v.logger.Debug("Verified type", "type", original.Name, "target", target.Name, "diagnostics", len(c.diagnostics))
	return c.diagnostics, nil
}

type check struct {
	*Verifier
	diagnostics []Diagnostic
}

func (c *check) add(kind MemberKind, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (c *check) typeFlags(original, target *Type) {
	sig := original.Signature()
	if got, want := target.Visibility(), original.Visibility(); got != want {
		c.add(KindType, "Type visibility %s different %s: %s", want, got, target.Signature())
	}
	flag(c, KindType, target.Modifiers.Is(Static), original.Modifiers.Is(Static), "Static", "Instance", sig)
	flag(c, KindType, target.Modifiers.Is(Final), original.Modifiers.Is(Final), "Final", "Not final", sig)
	flag(c, KindType, target.Modifiers.Is(Abstract), original.Modifiers.Is(Abstract), "Abstract", "Not abstract", sig)
}

// flag records "<Yes|No> expected <yes|no>: sig" when the target's flag
// differs from the original's.
func flag(c *check, kind MemberKind, target, original bool, yes, no, sig string) {
	if target == original {
		return
	}
	got := no
	if target {
		got = yes
	}
	want := strings.ToLower(no)
	if original {
		want = strings.ToLower(yes)
	}
	c.add(kind, "%s expected %s: %s", got, want, sig)
}

func (c *check) constructorsOf(original, target *Type) error {
	for _, ctor := range original.Constructors {
		if ctor.IsSynthetic() || !c.constructors(ctor) {
			continue
		}
		params, err := mapAll(c.mapper, ctor.Parameters)
		if err != nil {
			return err
		}
		other := target.Constructor(params)
		if other == nil {
			c.missing(KindConstructor, "Constructor", ctor)
			continue
		}
		if got, want := other.Visibility(), ctor.Visibility(); got != want {
			c.add(KindConstructor, "Constructor visibility %s different %s: %s", want, got, other.Signature())
			continue
		}
		extra, err := c.uncovered(ctor.Exceptions, other.Exceptions)
		if err != nil {
			return err
		}
		if len(extra) > 0 {
			c.add(KindConstructor, "Constructor includes unexpected throws(%s): %s", joinRefs(extra, ", "), other.Signature())
		}
	}
	return nil
}

func (c *check) methodsOf(original, target *Type) error {
	for _, m := range original.Methods {
		if m.IsSynthetic() || m.IsBridge() || !c.methods(m) {
			continue
		}
		params, err := mapAll(c.mapper, m.Parameters)
		if err != nil {
			return err
		}
		other := target.Method(m.Name, params)
		if other == nil {
			c.missing(KindMethod, "Method", m)
			continue
		}
		sig := m.Signature()

		ret, err := c.mapper(m.Type)
		if err != nil {
			return err
		}
		if other.Type != ret {
			c.add(KindMethod, "Method return type %s different: %s", m.Type, sig)
		}
		if got, want := other.Visibility(), m.Visibility(); got != want {
			c.add(KindMethod, "Method visibility %s different %s: %s", want, got, other.Signature())
			continue
		}
		extra, err := c.uncovered(m.Exceptions, other.Exceptions)
		if err != nil {
			return err
		}
		if len(extra) > 0 {
			c.add(KindMethod, "Method includes unexpected throws(%s): %s", joinRefs(extra, ", "), sig)
		}
		flag(c, KindMethod, other.Modifiers.Is(Static), m.Modifiers.Is(Static), "Static", "Instance", sig)
		flag(c, KindMethod, other.Modifiers.Is(Abstract), m.Modifiers.Is(Abstract), "Abstract", "Non abstract", sig)
		flag(c, KindMethod, other.Modifiers.Is(Final), m.Modifiers.Is(Final), "Final", "Non final", sig)
	}
	return nil
}

func (c *check) fieldsOf(original, target *Type) error {
	for _, f := range original.Fields {
		if f.IsSynthetic() || !c.fields(f) {
			continue
		}
		other := target.Field(f.Name)
		if other == nil {
			c.missing(KindField, "Field", f)
			continue
		}
		sig := f.Signature()

		typ, err := c.mapper(f.Type)
		if err != nil {
			return err
		}
		if other.Type != typ {
			c.add(KindField, "Field type %s different: %s", f.Type, sig)
		}
		if got, want := other.Visibility(), f.Visibility(); got != want {
			c.add(KindField, "Field visibility %s different %s: %s", want, got, other.Signature())
		}
		flag(c, KindField, other.Modifiers.Is(Static), f.Modifiers.Is(Static), "Static", "Instance", sig)
		flag(c, KindField, other.Modifiers.Is(Final), f.Modifiers.Is(Final), "Final", "Non final", sig)

		if f.Modifiers.Is(Static|Final) && other.Modifiers.Is(Static|Final) &&
			f.Type.constantType() && other.Type.constantType() &&
			!sameConstant(f.Constant, other.Constant) {
			c.add(KindField, "Field value %s different %s: %s", quote(f.Constant), quote(other.Constant), sig)
		}
	}
	return nil
}

// missing reports a member absent from the target. Members that are package
// private or more restrictive may legitimately be dropped.
func (c *check) missing(kind MemberKind, what string, m *Member) {
	if m.Visibility() <= VisibilityPackagePrivate {
		c.logger.Debug("Skipping missing member", "kind", kind, "member", m.Signature())
		return
	}
	c.add(kind, "%s missing from target: %s", what, m.Signature())
}

// uncovered returns the original exceptions whose mapped type is not
// assignable to any exception the target declares.
func (c *check) uncovered(original, target []TypeRef) ([]TypeRef, error) {
	var extra []TypeRef
	for _, e := range original {
		mapped, err := c.mapper(e)
		if err != nil {
			return nil, err
		}
		covered := false
		for _, t := range target {
			if c.assignable(t, mapped) {
				covered = true
				break
			}
		}
		if !covered {
			extra = append(extra, e)
		}
	}
	return extra, nil
}

// assignable reports whether a value of type from can be assigned to to,
// walking superclasses and interfaces through the resolver and the JDK
// exception hierarchy.
func (c *check) assignable(to, from TypeRef) bool {
	if to == from {
		return true
	}
	if to.Dims != 0 || from.Dims != 0 || from.IsPrimitive() {
		return false
	}
	seen := map[string]bool{}
	queue := []string{from.Name}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == to.Name {
			return true
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if t, err := c.resolver.Resolve(name); err == nil {
			queue = append(queue, t.Superclass)
			queue = append(queue, t.Interfaces...)
		} else if super, ok := jdkThrowables[name]; ok {
			queue = append(queue, super)
		}
	}
	return false
}

func sameConstant(a, b any) bool {
	switch a := a.(type) {
	case float32:
		b, ok := b.(float32)
		return ok && sameFloat(float64(a), float64(b))
	case float64:
		b, ok := b.(float64)
		return ok && sameFloat(a, b)
	}
	return a == b
}

// sameFloat compares like Java's Double.equals: NaN equals NaN and 0.0
// differs from -0.0.
func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b && math.Signbit(a) == math.Signbit(b)
}

// quote renders a constant the way Java source would spell it.
func quote(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case uint16:
		return strconv.QuoteRune(rune(v))
	case float32:
		return javaFloat(float64(v), 32)
	case float64:
		return javaFloat(v, 64)
	}
	return fmt.Sprint(v)
}

func javaFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
