package relocate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semshade/mapping"
)

func rules(pairs ...string) []mapping.Rule {
	var out []mapping.Rule
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, mapping.Rule{From: pairs[i], To: pairs[i+1]})
	}
	return out
}

const mainClass = "package package1;\nimport package2.type3;\nclass Type4{\npublic static void main(final String[] args){}\n};"

func TestSource(t *testing.T) {
	tests := []struct {
		name  string
		input string
		rules []mapping.Rule
		want  string
	}{
		{
			name:  "no rules",
			input: "import ns1.ns2.type3;",
			want:  "import ns1.ns2.type3;",
		},
		{
			name:  "unrelated rule",
			input: "import ns1.ns2.type3;",
			rules: rules("ignored", "ns4.ns5"),
			want:  "import ns1.ns2.type3;",
		},
		{
			name:  "longer rule does not match",
			input: "import ns1.ns2.type3;",
			rules: rules("ns1.ns2.type4", "NEVER"),
			want:  "import ns1.ns2.type3;",
		},
		{
			name:  "inner segment does not match",
			input: "import ns1.ns2.type3;",
			rules: rules("ns2", "NEVER"),
			want:  "import ns1.ns2.type3;",
		},
		{
			name:  "qualified rule",
			input: "import ns1.ns2.type3;",
			rules: rules("ns1.ns2", "ns4.ns5"),
			want:  "import ns4.ns5.type3;",
		},
		{
			name:  "prefix without boundary",
			input: "import ns1.ns2.type3;",
			rules: rules("ns1", "ns4"),
			want:  "import ns4.ns2.type3;",
		},
		{
			name:  "prefix inside a segment",
			input: "import pkg10.Type;",
			rules: rules("pkg1", "pkg9"),
			want:  "import pkg90.Type;",
		},
		{
			name:  "first rule wins",
			input: "import ns1.ns2.type3;",
			rules: rules("ns1", "ns4", "ns1.ns2", "NEVER"),
			want:  "import ns4.ns2.type3;",
		},
		{
			name:  "wildcard import",
			input: "import package1.package2.*;",
			rules: rules("package1.package2", "package4.package5"),
			want:  "import package4.package5.*;",
		},
		{
			name:  "wildcard import prefix",
			input: "import package1.package2.*;",
			rules: rules("package1", "package4"),
			want:  "import package4.package2.*;",
		},
		{
			name:  "static import",
			input: "import static ns1.Util.helper;",
			rules: rules("ns1", "ns9"),
			want:  "import static ns9.Util.helper;",
		},
		{
			name:  "package declaration",
			input: mainClass,
			rules: rules("package1", "package99"),
			want:  "package package99;\nimport package2.type3;\nclass Type4{\npublic static void main(final String[] args){}\n};",
		},
		{
			name:  "qualified package declaration",
			input: "package package1.package2;\nimport package2.type3;\nclass Type4{}",
			rules: rules("package1.package2", "package98.package99"),
			want:  "package package98.package99;\nimport package2.type3;\nclass Type4{}",
		},
		{
			name:  "bare type use untouched",
			input: "package package1;\nclass Type4{\npublic static Type6 x(){return null;}\n}",
			rules: rules("Type6", "Type99"),
			want:  "package package1;\nclass Type4{\npublic static Type6 x(){return null;}\n}",
		},
		{
			name:  "class declaration name",
			input: "package package1;\nclass Type4{\npublic static Type6 x(){return null;}\n}",
			rules: rules("Type4", "Type99"),
			want:  "package package1;\nclass Type99{\npublic static Type6 x(){return null;}\n}",
		},
		{
			name:  "multiple rules in one pass",
			input: "package ns1.ns2;\nimport ns2.type3;\nclass T{\npublic static ns5.T6 x(){return null}\n};",
			rules: rules("ns1", "ns91", "ns5", "ns95"),
			want:  "package ns91.ns2;\nimport ns2.type3;\nclass T{\npublic static ns95.T6 x(){return null}\n};",
		},
		{
			name:  "qualified return type shares the package rule",
			input: "package package1;\nimport package2.type3;\nclass Type4{\npublic static package1.Type5 x(){return null;}\n}",
			rules: rules("package99", "NEVER", "package1", "package91", "package2", "package92"),
			want:  "package package91;\nimport package92.type3;\nclass Type4{\npublic static package91.Type5 x(){return null;}\n}",
		},
		{
			name:  "qualified expression",
			input: "class A { Object o = ns1.Util.create(ns1.Util.DEFAULT); }",
			rules: rules("ns1", "ns2"),
			want:  "class A { Object o = ns2.Util.create(ns2.Util.DEFAULT); }",
		},
		{
			name:  "generic qualified type",
			input: "class A { java.util.List<ns1.Item> items; }",
			rules: rules("ns1", "ns2"),
			want:  "class A { java.util.List<ns2.Item> items; }",
		},
		{
			name:  "type annotated qualified type",
			input: "class A { ns1.pkg.@Deprecated Foo f; }",
			rules: rules("ns1", "ns2"),
			want:  "class A { ns2.pkg.@Deprecated Foo f; }",
		},
		{
			name:  "qualified type annotation on qualified type",
			input: "class A { ns1.@ns1.NonNull Foo f; }",
			rules: rules("ns1", "ns2"),
			want:  "class A { ns2.@ns2.NonNull Foo f; }",
		},
		{
			name:  "string literal untouched",
			input: "class A { String s = \"ns1.Util\"; }",
			rules: rules("ns1", "ns2"),
			want:  "class A { String s = \"ns1.Util\"; }",
		},
		{
			name:  "comment untouched",
			input: "// ns1.Util\nclass A {}",
			rules: rules("ns1", "ns2"),
			want:  "// ns1.Util\nclass A {}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := mapping.NewTable(tt.rules)
			require.NoError(t, err)

			got, err := Source([]byte(tt.input), "", table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSourceBoundary(t *testing.T) {
	table, err := mapping.NewTable(rules("pkg1", "pkg9"), mapping.WithBoundary())
	require.NoError(t, err)

	got, err := Source([]byte("import pkg10.A;\nimport pkg1.B;"), "", table)
	require.NoError(t, err)
	assert.Equal(t, "import pkg10.A;\nimport pkg9.B;", string(got))
}

func TestSourceIdentity(t *testing.T) {
	input := []byte(mainClass)
	got, err := Source(input, "", mapping.MustTable())
	require.NoError(t, err)
	assert.Equal(t, input, got)
	assert.NotSame(t, &input[0], &got[0])
}

func TestSourceSyntaxError(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"leading braces", "}} class A {}"},
		{"broken expression", "class A { int x = 1 +; } }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, table := range []*mapping.Table{mapping.MustTable(), mapping.MustTable(mapping.Rule{From: "A", To: "B"})} {
				out, err := Source([]byte(tt.input), "", table)
				require.Error(t, err)
				assert.Nil(t, out)

				var se *SyntaxError
				require.True(t, errors.As(err, &se), "got %v", err)
				assert.GreaterOrEqual(t, se.Line, 1)
				assert.GreaterOrEqual(t, se.Column, 1)
				assert.True(t, IsSyntaxError(err))
			}
		})
	}
}

func TestSourceCharset(t *testing.T) {
	// "é" in ISO-8859-1 is the single byte 0xE9.
	input := []byte("// caf\xe9\nimport ns1.Type;")
	table := mapping.MustTable(mapping.Rule{From: "ns1", To: "ns22"})

	got, err := Source(input, "ISO-8859-1", table)
	require.NoError(t, err)
	assert.Equal(t, []byte("// caf\xe9\nimport ns22.Type;"), got)

	_, err = Source(input, "no-such-charset", table)
	assert.ErrorIs(t, err, ErrUnsupportedCharset)
}

func TestOccurrences(t *testing.T) {
	src := []byte("package a.b;\nimport c.D;\nclass E extends f.G { H h; }")
	got, err := Occurrences(src)
	require.NoError(t, err)

	var texts []string
	for _, o := range got {
		assert.Equal(t, o.Text, string(src[o.Start:o.End]))
		texts = append(texts, o.Text)
	}
	assert.Equal(t, []string{"a.b", "c.D", "E", "f.G", "h"}, texts)

	src = []byte("class E { f.g.@Deprecated H h; }")
	got, err = Occurrences(src)
	require.NoError(t, err)
	texts = texts[:0]
	for _, o := range got {
		texts = append(texts, o.Text)
	}
	assert.Equal(t, []string{"E", "f.g", "Deprecated", "h"}, texts)
}

func TestApply(t *testing.T) {
	src := []byte("abcdef")

	out, err := Apply(src, []Edit{{Start: 4, End: 5, Text: "XYZ"}, {Start: 0, End: 2, Text: ""}})
	require.NoError(t, err)
	assert.Equal(t, "cdXYZf", string(out))

	_, err = Apply(src, []Edit{{Start: 0, End: 3, Text: "x"}, {Start: 2, End: 4, Text: "y"}})
	assert.ErrorIs(t, err, ErrOverlappingEdits)

	_, err = Apply(src, []Edit{{Start: 5, End: 9, Text: "x"}})
	assert.ErrorIs(t, err, ErrOverlappingEdits)
}
