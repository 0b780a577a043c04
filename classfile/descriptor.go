package classfile

// FieldType is a decoded field descriptor. Base is one of BCDFIJSZ for
// primitives, 'V' for a void return type, or 'L' for a class type named by
// Class in internal form. Dims counts leading array dimensions.
type FieldType struct {
	Base  byte
	Class string
	Dims  int
}

// ParseFieldDescriptor decodes a field descriptor such as "[Ljava/lang/String;".
func ParseFieldDescriptor(desc string) (FieldType, error) {
	ft, n, err := parseFieldType(desc, 0, false)
	if err != nil {
		return FieldType{}, err
	}
	if n != len(desc) {
		return FieldType{}, malformed("descriptor %q has trailing characters", desc)
	}
	return ft, nil
}

// ParseMethodDescriptor decodes a method descriptor such as "(I[J)V".
func ParseMethodDescriptor(desc string) ([]FieldType, FieldType, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, FieldType{}, malformed("method descriptor %q does not start with '('", desc)
	}
	var params []FieldType
	i := 1
	for {
		if i >= len(desc) {
			return nil, FieldType{}, malformed("method descriptor %q is unterminated", desc)
		}
		if desc[i] == ')' {
			i++
			break
		}
		ft, next, err := parseFieldType(desc, i, false)
		if err != nil {
			return nil, FieldType{}, err
		}
		params = append(params, ft)
		i = next
	}
	ret, next, err := parseFieldType(desc, i, true)
	if err != nil {
		return nil, FieldType{}, err
	}
	if next != len(desc) {
		return nil, FieldType{}, malformed("method descriptor %q has trailing characters", desc)
	}
	return params, ret, nil
}

func parseFieldType(desc string, i int, allowVoid bool) (FieldType, int, error) {
	var ft FieldType
	for i < len(desc) && desc[i] == '[' {
		ft.Dims++
		i++
	}
	if i >= len(desc) {
		return FieldType{}, 0, malformed("descriptor %q is truncated", desc)
	}
	switch c := desc[i]; c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		ft.Base = c
		return ft, i + 1, nil
	case 'V':
		if !allowVoid || ft.Dims > 0 {
			return FieldType{}, 0, malformed("descriptor %q uses void as a value type", desc)
		}
		ft.Base = c
		return ft, i + 1, nil
	case 'L':
		end := i + 1
		for end < len(desc) && desc[end] != ';' {
			end++
		}
		if end >= len(desc) || end == i+1 {
			return FieldType{}, 0, malformed("descriptor %q has a bad class type", desc)
		}
		ft.Base = 'L'
		ft.Class = desc[i+1 : end]
		return ft, end + 1, nil
	default:
		return FieldType{}, 0, malformed("descriptor %q has unknown type %q", desc, c)
	}
}
