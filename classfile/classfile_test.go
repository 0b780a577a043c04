package classfile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semshade/classfile"
	"github.com/c360studio/semshade/classfile/classfiletest"
)

func sample() *classfiletest.Builder {
	b := classfiletest.NewClass("pkg/Sample", classfile.AccPublic|classfile.AccSuper).
		Interface("java/io/Serializable").
		Signature("Ljava/lang/Object;Ljava/lang/Comparable<Lpkg/Sample;>;").
		Annotation("Lpkg/Marker;").
		InnerClass("pkg/Sample$Inner", "pkg/Sample", "Inner", classfile.AccPublic|classfile.AccStatic).
		Field(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "LIMIT", "J", classfiletest.WithConstant(int64(42))).
		Field(classfile.AccPrivate, "other", "Lpkg/Other;", classfiletest.WithSignature("Lpkg/Other<Ljava/lang/String;>;")).
		Method(classfile.AccPublic, "<init>", "()V",
			classfiletest.WithCode(1, 1, []byte{0x2a, 0xb7, 0x00, 0x01, 0xb1},
				classfiletest.LocalVariable{Name: "this", Descriptor: "Lpkg/Sample;"})).
		Method(classfile.AccPublic, "run", "(Lpkg/Other;[I)Lpkg/Sample;",
			classfiletest.WithExceptions("java/io/IOException"),
			classfiletest.WithAnnotation("Ljava/lang/Deprecated;"))
	b.StringConstant("pkg/Sample")
	return b
}

func TestParseBytesRoundTrip(t *testing.T) {
	in := sample().MustBytes()

	cf, err := classfile.Parse(in)
	require.NoError(t, err)

	out, err := cf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestClassAccessors(t *testing.T) {
	cf, err := classfile.Parse(sample().MustBytes())
	require.NoError(t, err)

	name, err := cf.Name()
	require.NoError(t, err)
	assert.Equal(t, "pkg/Sample", name)

	super, err := cf.SuperName()
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", super)

	ifaces, err := cf.InterfaceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"java/io/Serializable"}, ifaces)

	require.Len(t, cf.Fields, 2)
	c, err := cf.ConstantValue(cf.Fields[0])
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, classfile.TagLong, c.Tag)
	assert.Equal(t, int64(42), c.Long())

	c, err = cf.ConstantValue(cf.Fields[1])
	require.NoError(t, err)
	assert.Nil(t, c)

	require.Len(t, cf.Methods, 2)
	exc, err := cf.Attribute(cf.Methods[1].Attributes, "Exceptions")
	require.NoError(t, err)
	require.NotNil(t, exc)
	names, err := cf.ClassNames(exc)
	require.NoError(t, err)
	assert.Equal(t, []string{"java/io/IOException"}, names)

	inner, err := cf.InnerClasses()
	require.NoError(t, err)
	assert.Equal(t, []classfile.InnerClass{{
		Inner:  "pkg/Sample$Inner",
		Outer:  "pkg/Sample",
		Simple: "Inner",
		Access: classfile.AccPublic | classfile.AccStatic,
	}}, inner)
}

func TestParseCode(t *testing.T) {
	cf, err := classfile.Parse(sample().MustBytes())
	require.NoError(t, err)

	a, err := cf.Attribute(cf.Methods[0].Attributes, "Code")
	require.NoError(t, err)
	require.NotNil(t, a)

	code, err := classfile.ParseCode(a.Info)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2a, 0xb7, 0x00, 0x01, 0xb1}, code.Code)
	assert.Len(t, code.Attributes, 1)
	assert.Equal(t, a.Info, code.Bytes())
}

func TestParseMalformed(t *testing.T) {
	good := sample().MustBytes()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0xCA, 0xFE, 0xBA, 0xBF, 0, 0, 0, 52}},
		{"truncated", good[:len(good)/2]},
		{"trailing bytes", append(append([]byte{}, good...), 0)},
		{"zero pool count", []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classfile.Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, classfile.ErrMalformed), "got %v", err)
		})
	}
}

func TestRewriteNamesKeepsSharedUtf8(t *testing.T) {
	cf, err := classfile.Parse(sample().MustBytes())
	require.NoError(t, err)
	before := cf.Pool.Count()

	changed, err := cf.RewriteNames(func(kind classfile.NameKind, v string) (string, error) {
		if kind == classfile.InternalName && v == "pkg/Sample" {
			return "moved/Sample", nil
		}
		return v, nil
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, cf.Pool.Count(), before)

	name, err := cf.Name()
	require.NoError(t, err)
	assert.Equal(t, "moved/Sample", name)

	// The String constant still reads the original text.
	var literals []string
	for i := 1; i < cf.Pool.Count(); i++ {
		c, err := cf.Pool.Get(uint16(i))
		if err != nil || c.Tag != classfile.TagString {
			continue
		}
		s, err := cf.Pool.Utf8(c.First)
		require.NoError(t, err)
		literals = append(literals, s)
	}
	assert.Equal(t, []string{"pkg/Sample"}, literals)
}

func TestRewriteNamesVisitsEverySite(t *testing.T) {
	cf, err := classfile.Parse(sample().MustBytes())
	require.NoError(t, err)

	seen := map[classfile.NameKind][]string{}
	changed, err := cf.RewriteNames(func(kind classfile.NameKind, v string) (string, error) {
		seen[kind] = append(seen[kind], v)
		return v, nil
	})
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Contains(t, seen[classfile.InternalName], "pkg/Sample$Inner")
	assert.Contains(t, seen[classfile.Descriptor], "(Lpkg/Other;[I)Lpkg/Sample;")
	assert.Contains(t, seen[classfile.Descriptor], "Lpkg/Marker;")
	assert.Contains(t, seen[classfile.Descriptor], "Ljava/lang/Deprecated;")
	// LocalVariableTable inside Code.
	assert.Contains(t, seen[classfile.Descriptor], "Lpkg/Sample;")
	assert.Contains(t, seen[classfile.Signature], "Lpkg/Other<Ljava/lang/String;>;")
	assert.Contains(t, seen[classfile.Signature], "Ljava/lang/Object;Ljava/lang/Comparable<Lpkg/Sample;>;")
}

func TestRewriteNamesError(t *testing.T) {
	cf, err := classfile.Parse(sample().MustBytes())
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = cf.RewriteNames(func(classfile.NameKind, string) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestParseFieldDescriptor(t *testing.T) {
	tests := []struct {
		desc    string
		want    classfile.FieldType
		wantErr bool
	}{
		{desc: "I", want: classfile.FieldType{Base: 'I'}},
		{desc: "[[J", want: classfile.FieldType{Base: 'J', Dims: 2}},
		{desc: "Ljava/lang/String;", want: classfile.FieldType{Base: 'L', Class: "java/lang/String"}},
		{desc: "[Lpkg/A$B;", want: classfile.FieldType{Base: 'L', Class: "pkg/A$B", Dims: 1}},
		{desc: "V", wantErr: true},
		{desc: "L;", wantErr: true},
		{desc: "Lpkg/A", wantErr: true},
		{desc: "II", wantErr: true},
		{desc: "Q", wantErr: true},
		{desc: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := classfile.ParseFieldDescriptor(tt.desc)
			if tt.wantErr {
				assert.ErrorIs(t, err, classfile.ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret, err := classfile.ParseMethodDescriptor("(I[Ljava/lang/String;D)Lpkg/R;")
	require.NoError(t, err)
	assert.Equal(t, []classfile.FieldType{
		{Base: 'I'},
		{Base: 'L', Class: "java/lang/String", Dims: 1},
		{Base: 'D'},
	}, params)
	assert.Equal(t, classfile.FieldType{Base: 'L', Class: "pkg/R"}, ret)

	_, ret, err = classfile.ParseMethodDescriptor("()V")
	require.NoError(t, err)
	assert.Equal(t, byte('V'), ret.Base)

	for _, bad := range []string{"", "I", "(I", "(V)V", "()[V", "()VV"} {
		_, _, err := classfile.ParseMethodDescriptor(bad)
		assert.ErrorIs(t, err, classfile.ErrMalformed, bad)
	}
}

func TestConstantPoolAddUtf8Dedupes(t *testing.T) {
	p := classfile.NewConstantPool()
	a, err := p.AddUtf8("x")
	require.NoError(t, err)
	b, err := p.AddUtf8("x")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	l, err := p.AddLong(1)
	require.NoError(t, err)
	next, err := p.AddUtf8("y")
	require.NoError(t, err)
	assert.Equal(t, l+2, next, "long takes two slots")

	_, err = p.Get(l + 1)
	assert.ErrorIs(t, err, classfile.ErrMalformed)
}
