package relocate

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/c360studio/semshade/mapping"
)

// Source relocates Java source text encoded in charset. An empty charset
// means UTF-8. Text that does not parse yields a *SyntaxError, even when the
// table is empty.
func Source(content []byte, charset string, table *mapping.Table) ([]byte, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}
	text := content
	if enc != nil {
		if text, err = enc.NewDecoder().Bytes(content); err != nil {
			return nil, fmt.Errorf("decode %s: %w", charset, err)
		}
	}

	occurrences, err := Occurrences(text)
	if err != nil {
		return nil, err
	}
	edits := Edits(occurrences, table)
	if len(edits) == 0 {
		return bytes.Clone(content), nil
	}
	out, err := Apply(text, edits)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		if out, err = enc.NewEncoder().Bytes(out); err != nil {
			return nil, fmt.Errorf("encode %s: %w", charset, err)
		}
	}
	return out, nil
}

// Edit replaces the bytes in [Start, End) with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Edits resolves occurrences against table. Only the matched prefix of an
// occurrence is replaced; the remainder is left as written.
func Edits(occurrences []Occurrence, table *mapping.Table) []Edit {
	var edits []Edit
	for _, o := range occurrences {
		rule, ok := table.MatchSource(o.Text)
		if !ok || rule.From == rule.To {
			continue
		}
		edits = append(edits, Edit{Start: o.Start, End: o.Start + len(rule.From), Text: rule.To})
	}
	return edits
}

// Apply builds the edited text in one pass. Edits may be given in any
// order but must not overlap.
func Apply(src []byte, edits []Edit) ([]byte, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	grow := 0
	prev := 0
	for _, e := range sorted {
		if e.Start < prev || e.End < e.Start || e.End > len(src) {
			return nil, fmt.Errorf("edit [%d,%d): %w", e.Start, e.End, ErrOverlappingEdits)
		}
		prev = e.End
		grow += len(e.Text) - (e.End - e.Start)
	}

	out := make([]byte, 0, len(src)+max(grow, 0))
	last := 0
	for _, e := range sorted {
		out = append(out, src[last:e.Start]...)
		out = append(out, e.Text...)
		last = e.End
	}
	return append(out, src[last:]...), nil
}

// lookupCharset returns nil for UTF-8, which needs no transcoding.
func lookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrUnsupportedCharset)
	}
	return enc, nil
}
