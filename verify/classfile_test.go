package verify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semshade/classfile"
	"github.com/c360studio/semshade/classfile/classfiletest"
	"github.com/c360studio/semshade/mapping"
	"github.com/c360studio/semshade/relocate"
	"github.com/c360studio/semshade/verify"
)

var ret = []byte{0xb1}

func TestParseType(t *testing.T) {
	content := classfiletest.NewClass("a/Outer$Inner", classfile.AccPublic|classfile.AccSuper).
		Interface("java/lang/Runnable").
		InnerClass("a/Outer$Inner", "a/Outer", "Inner", classfile.AccPublic|classfile.AccStatic|classfile.AccFinal).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "FLAG", "Z", classfiletest.WithConstant(int32(1))).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "LETTER", "C", classfiletest.WithConstant(int32('x'))).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "BIG", "J", classfiletest.WithConstant(int64(1)<<40)).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "HALF", "F", classfiletest.WithConstant(float32(0.5))).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "RATIO", "D", classfiletest.WithConstant(2.5)).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "NAME", "Ljava/lang/String;", classfiletest.WithConstant("inner")).
		Field(classfile.AccPrivate, "items", "[[La/Item;").
		Method(classfile.AccStatic, "<clinit>", "()V", classfiletest.WithCode(0, 0, ret)).
		Method(classfile.AccPublic, "<init>", "(I)V", classfiletest.WithCode(1, 2, ret)).
		Method(classfile.AccPublic|classfile.AccVarargs, "run", "(J[Ljava/lang/String;)[La/Item;",
			classfiletest.WithExceptions("java/io/IOException", "a/Failure"),
			classfiletest.WithCode(1, 4, ret)).
		MustBytes()

	typ, err := verify.ParseType(content)
	require.NoError(t, err)

	assert.Equal(t, "a.Outer$Inner", typ.Name)
	assert.Equal(t, verify.Public|verify.Static|verify.Final, typ.Modifiers)
	assert.Equal(t, "public static final class a.Outer$Inner", typ.Signature())
	assert.Equal(t, "java.lang.Object", typ.Superclass)
	assert.Equal(t, []string{"java.lang.Runnable"}, typ.Interfaces)

	require.Len(t, typ.Constructors, 1)
	ctor := typ.Constructors[0]
	assert.Equal(t, []verify.TypeRef{verify.Ref("int")}, ctor.Parameters)
	assert.Equal(t, "public a.Outer$Inner(int)", ctor.Signature())

	require.Len(t, typ.Methods, 1, "static initializer is skipped")
	m := typ.Methods[0]
	assert.Equal(t, verify.TypeRef{Name: "a.Item", Dims: 1}, m.Type)
	assert.Equal(t, []verify.TypeRef{verify.Ref("java.io.IOException"), verify.Ref("a.Failure")}, m.Exceptions)
	assert.Equal(t, "public a.Item[] a.Outer$Inner.run(long,java.lang.String...) throws java.io.IOException,a.Failure", m.Signature())

	constants := map[string]any{}
	for _, f := range typ.Fields {
		constants[f.Name] = f.Constant
	}
	assert.Equal(t, map[string]any{
		"FLAG":   true,
		"LETTER": uint16('x'),
		"BIG":    int64(1) << 40,
		"HALF":   float32(0.5),
		"RATIO":  2.5,
		"NAME":   "inner",
		"items":  nil,
	}, constants)
	assert.Equal(t, verify.TypeRef{Name: "a.Item", Dims: 2}, typ.Fields[6].Type)
}

func TestParseTypeRejectsMismatchedConstant(t *testing.T) {
	content := classfiletest.NewClass("a/Foo", classfile.AccPublic).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "X", "J", classfiletest.WithConstant(int32(1))).
		MustBytes()
	_, err := verify.ParseType(content)
	assert.ErrorIs(t, err, classfile.ErrMalformed)
}

func shadeFixtures(t *testing.T) (originals, relocated [][]byte) {
	t.Helper()
	originals = [][]byte{
		classfiletest.NewClass("a/Foo", classfile.AccPublic|classfile.AccSuper).
			Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "LIMIT", "I", classfiletest.WithConstant(int32(3))).
			Field(classfile.AccPrivate, "bar", "La/Bar;").
			Method(classfile.AccPublic, "<init>", "()V", classfiletest.WithCode(1, 1, ret)).
			Method(classfile.AccPublic, "bar", "(La/Bar;)[La/Bar;",
				classfiletest.WithExceptions("a/FooException"),
				classfiletest.WithSignature("<T:La/Bar;>(TT;)[La/Bar;"),
				classfiletest.WithCode(1, 2, ret)).
			MustBytes(),
		classfiletest.NewClass("a/Bar", classfile.AccPublic|classfile.AccSuper).MustBytes(),
		classfiletest.NewClass("a/FooException", classfile.AccPublic|classfile.AccSuper).
			Super("java/lang/Exception").
			MustBytes(),
	}
	table := mapping.MustTable(mapping.Rule{From: "a", To: "b"})
	for _, c := range originals {
		out, err := relocate.Class(c, table)
		require.NoError(t, err)
		relocated = append(relocated, out)
	}
	return originals, relocated
}

func TestRelocatedClassVerifies(t *testing.T) {
	originals, relocated := shadeFixtures(t)

	types := verify.NewTypeSet()
	for _, c := range append(originals, relocated...) {
		typ, err := verify.ParseType(c)
		require.NoError(t, err)
		types.Add(typ)
	}
	target, err := types.Resolve("b.Foo")
	require.NoError(t, err)
	assert.Equal(t, "b.FooException", target.Methods[0].Exceptions[0].Name)

	mapper, err := verify.NewNameMapper("a", "b", types)
	require.NoError(t, err)
	original, err := types.Resolve("a.Foo")
	require.NoError(t, err)

	mapped, err := verify.MustDiffer(mapper)(original.Ref())
	require.NoError(t, err)
	assert.Equal(t, "b.Foo", mapped.Name)

	diags, err := verify.New(types, mapper).Verify(original)
	require.NoError(t, err)
	assert.Empty(t, diags)
}
