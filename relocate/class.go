// Package relocate rewrites namespace-qualified names in compiled class
// files and in Java source text.
//
// Both relocators take an ordered mapping.Table, rewrite every matching
// occurrence in one pass and leave everything else byte-identical. Neither
// partially applies: a call either returns the complete rewritten artifact
// or an error and no output. Calls share no state and are safe to run
// concurrently.
package relocate

import (
	"bytes"

	"github.com/c360studio/semshade/classfile"
	"github.com/c360studio/semshade/mapping"
)

// Class relocates a class file. Malformed input yields an error matching
// classfile.ErrMalformed. Module and Package constants are not relocated.
func Class(content []byte, table *mapping.Table) ([]byte, error) {
	cf, err := classfile.Parse(content)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return bytes.Clone(content), nil
	}
	changed, err := cf.RewriteNames(remapper{table: table}.name)
	if err != nil {
		return nil, err
	}
	if !changed {
		return bytes.Clone(content), nil
	}
	return cf.Bytes()
}

// ClassName returns the internal name of the class in content before and
// after relocation through table, without rewriting the class.
func ClassName(content []byte, table *mapping.Table) (from, to string, err error) {
	cf, err := classfile.Parse(content)
	if err != nil {
		return "", "", err
	}
	from, err = cf.Name()
	if err != nil {
		return "", "", err
	}
	if out, ok := table.LookupBinary(from); ok {
		return from, out, nil
	}
	return from, from, nil
}
