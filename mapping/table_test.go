package mapping

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSource(t *testing.T) {
	tests := []struct {
		name   string
		rules  []Rule
		text   string
		want   string
		wantOK bool
	}{
		{"no rules", nil, "ns1.ns2.type3", "", false},
		{"exact", []Rule{{"ns1.ns2", "ns4.ns5"}}, "ns1.ns2", "ns4.ns5", true},
		{"qualified prefix", []Rule{{"ns1.ns2", "ns4.ns5"}}, "ns1.ns2.type3", "ns4.ns5.type3", true},
		{"single segment prefix", []Rule{{"ns1", "ns4"}}, "ns1.ns2.type3", "ns4.ns2.type3", true},
		{"prefix without boundary", []Rule{{"pkg1", "pkg9"}}, "pkg10.Type", "pkg90.Type", true},
		{"longer rule does not match", []Rule{{"ns1.ns2.type4", "NEVER"}}, "ns1.ns2.type3", "", false},
		{"inner segment ignored", []Rule{{"ns2", "NEVER"}}, "ns1.ns2.type3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable(tt.rules)
			require.NoError(t, err)

			got, ok := table.LookupSource(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupBinary(t *testing.T) {
	table := MustTable(Rule{From: "ns1.ns2", To: "shaded.ns1.ns2"})

	got, ok := table.LookupBinary("ns1/ns2/Type$Inner")
	require.True(t, ok)
	assert.Equal(t, "shaded/ns1/ns2/Type$Inner", got)

	_, ok = table.LookupBinary("ns1.ns2.Type")
	assert.False(t, ok, "dotted names never match the binary form")

	_, ok = table.LookupBinary("java/lang/Object")
	assert.False(t, ok)
}

func TestLookupBinary_ReplacesOnlyThePrefix(t *testing.T) {
	table := MustTable(Rule{From: "pkg1", To: "pkg9"})

	got, ok := table.LookupBinary("pkg1/x/pkg1/Y")
	require.True(t, ok)
	assert.Equal(t, "pkg9/x/pkg1/Y", got)
}

func TestFirstRuleWins(t *testing.T) {
	table := MustTable(
		Rule{From: "ns1", To: "first"},
		Rule{From: "ns1.ns2", To: "more.specific"},
		Rule{From: "ns1", To: "NEVER"},
	)

	got, ok := table.LookupSource("ns1.ns2.Type")
	require.True(t, ok)
	assert.Equal(t, "first.ns2.Type", got)

	got, ok = table.LookupBinary("ns1/ns2/Type")
	require.True(t, ok)
	assert.Equal(t, "first/ns2/Type", got)
}

func TestWithBoundary(t *testing.T) {
	table, err := NewTable([]Rule{{From: "pkg1", To: "pkg9"}}, WithBoundary())
	require.NoError(t, err)
	assert.True(t, table.Boundary())

	_, ok := table.LookupSource("pkg10.Type")
	assert.False(t, ok)
	_, ok = table.LookupBinary("pkg10/Type")
	assert.False(t, ok)

	got, ok := table.LookupSource("pkg1.Type")
	assert.True(t, ok)
	assert.Equal(t, "pkg9.Type", got)

	got, ok = table.LookupBinary("pkg1")
	assert.True(t, ok)
	assert.Equal(t, "pkg9", got)
}

func TestNewTable_EmptyFrom(t *testing.T) {
	_, err := NewTable([]Rule{{From: "ok", To: "x"}, {From: "", To: "y"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyNamespace))
}

func TestRulesIsACopy(t *testing.T) {
	table := MustTable(Rule{From: "a", To: "b"})
	rules := table.Rules()
	rules[0].To = "changed"

	got, _ := table.LookupSource("a.X")
	assert.Equal(t, "b.X", got)
}

func TestNilTable(t *testing.T) {
	var table *Table
	assert.Equal(t, 0, table.Len())
	_, ok := table.LookupSource("a")
	assert.False(t, ok)
	_, ok = table.LookupBinary("a")
	assert.False(t, ok)
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{"a.b=c.d", Rule{From: "a.b", To: "c.d"}, false},
		{"a.b:c.d", Rule{From: "a.b", To: "c.d"}, false},
		{" a = b ", Rule{From: "a", To: "b"}, false},
		{"a.b", Rule{}, true},
		{"=b", Rule{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRules_KeepsOrder(t *testing.T) {
	rules, err := ParseRules([]string{"z=1", "a=2", "m=3"})
	require.NoError(t, err)
	assert.Equal(t, []Rule{{"z", "1"}, {"a", "2"}, {"m", "3"}}, rules)
}
