// Package shared renders values for humans: print_r and var_dump output and
// the one-line form the REPL shows.
package shared

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"quercus/value"
)

// cell returns the value of an array slot or object field that holds no
// variation, which is the case for resolved values
func cell(v value.Value, ref *value.Var) value.Value {
	if ref == nil {
		return v
	}
	all := ref.All()
	if all.IsEmpty() {
		return value.UNSET
	}
	return all.GetOne()
}

func str(v value.Value) string {
	s, _ := value.ToString(v)
	return s
}

// PrintR renders v the way print_r does
func PrintR(v value.Value) string {
	var b strings.Builder
	printR(&b, v, 0, map[int64]bool{})
	return b.String()
}

func printR(b *strings.Builder, v value.Value, indent int, seen map[int64]bool) {
	pad := strings.Repeat(" ", indent)
	switch x := v.(type) {
	case *value.Array:
		b.WriteString("Array\n" + pad + "(\n")
		x.Each(func(k value.Key, v value.Value, ref *value.Var) bool {
			fmt.Fprintf(b, "%s    [%s] => ", pad, k)
			printR(b, cell(v, ref), indent+8, seen)
			b.WriteByte('\n')
			return true
		})
		b.WriteString(pad + ")\n")
	case *value.Object:
		if seen[x.ID] {
			b.WriteString(x.ClassName() + " Object\n *RECURSION*")
			return
		}
		seen[x.ID] = true
		defer delete(seen, x.ID)
		b.WriteString(x.ClassName() + " Object\n" + pad + "(\n")
		for _, name := range x.FieldNames() {
			f, _ := x.Field(name)
			fmt.Fprintf(b, "%s    [%s] => ", pad, name)
			printR(b, cell(nil, f), indent+8, seen)
			b.WriteByte('\n')
		}
		b.WriteString(pad + ")\n")
	default:
		b.WriteString(str(v))
	}
}

// VarDump renders v the way var_dump does
func VarDump(v value.Value) string {
	var b strings.Builder
	varDump(&b, v, 0, map[int64]bool{})
	return b.String()
}

func varDump(b *strings.Builder, v value.Value, indent int, seen map[int64]bool) {
	pad := strings.Repeat(" ", indent)
	b.WriteString(pad)
	switch x := v.(type) {
	case value.Null, value.Unset, *value.ErrorValue, nil:
		b.WriteString("NULL\n")
	case value.Bool:
		fmt.Fprintf(b, "bool(%t)\n", bool(x))
	case value.Long:
		fmt.Fprintf(b, "int(%d)\n", int64(x))
	case value.Double:
		fmt.Fprintf(b, "float(%s)\n", x.String())
	case value.String, *value.StringBuilder:
		s := str(x)
		fmt.Fprintf(b, "string(%d) %q\n", len(s), s)
	case *value.Array:
		fmt.Fprintf(b, "array(%d) {\n", x.Len())
		x.Each(func(k value.Key, v value.Value, ref *value.Var) bool {
			if k.IsString() {
				fmt.Fprintf(b, "%s  [%q]=>\n", pad, k.String())
			} else {
				fmt.Fprintf(b, "%s  [%s]=>\n", pad, k)
			}
			varDump(b, cell(v, ref), indent+2, seen)
			return true
		})
		b.WriteString(pad + "}\n")
	case *value.Object:
		if seen[x.ID] {
			b.WriteString("*RECURSION*\n")
			return
		}
		seen[x.ID] = true
		defer delete(seen, x.ID)
		fmt.Fprintf(b, "object(%s)#%d (%d) {\n", x.ClassName(), x.ID, len(x.FieldNames()))
		for _, name := range x.FieldNames() {
			f, _ := x.Field(name)
			fmt.Fprintf(b, "%s  [%q]=>\n", pad, name)
			varDump(b, cell(nil, f), indent+2, seen)
		}
		b.WriteString(pad + "}\n")
	default:
		b.WriteString(value.Describe(v) + "\n")
	}
}

// FormatValueForDisplay renders v on one line: strings quoted, arrays as
// [k => v, ...]
func FormatValueForDisplay(v value.Value) string {
	switch x := v.(type) {
	case value.String, *value.StringBuilder:
		return strconv.Quote(str(x))
	case *value.Array:
		parts := make([]string, 0, x.Len())
		x.Each(func(k value.Key, v value.Value, ref *value.Var) bool {
			key := k.String()
			if k.IsString() {
				key = strconv.Quote(key)
			}
			parts = append(parts, key+" => "+FormatValueForDisplay(cell(v, ref)))
			return true
		})
		return "[" + strings.Join(parts, ", ") + "]"
	case *value.Object:
		return fmt.Sprintf("%s#%d", x.ClassName(), x.ID)
	case nil:
		return "NULL"
	}
	return value.Describe(v)
}

// FormatExported renders data produced by value.Export on one line, with
// map keys sorted
func FormatExported(x interface{}) string {
	switch v := x.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = FormatExported(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + " => " + FormatExported(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(x)
}
