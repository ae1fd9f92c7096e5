package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quercus/value"
)

func sampleArray() *value.Array {
	inner := value.NewArray()
	inner.Append(value.TRUE)

	a := value.NewArray()
	a.Set(value.IntKey(0), value.Long(1))
	a.Set(value.StrKey("a"), value.Str("x"))
	a.Set(value.StrKey("n"), inner)
	return a
}

func TestPrintR(t *testing.T) {
	assert.Equal(t, "hello", PrintR(value.Str("hello")))
	assert.Equal(t, "", PrintR(value.NULL))
	assert.Equal(t, "Array\n(\n    [0] => 1\n    [a] => x\n    [n] => Array\n        (\n            [0] => 1\n        )\n\n)\n",
		PrintR(sampleArray()))
}

func TestVarDump(t *testing.T) {
	assert.Equal(t, "NULL\n", VarDump(value.NULL))
	assert.Equal(t, "bool(false)\n", VarDump(value.Bool(false)))
	assert.Equal(t, "string(3) \"abc\"\n", VarDump(value.Str("abc")))
	assert.Equal(t, "array(3) {\n  [0]=>\n  int(1)\n  [\"a\"]=>\n  string(1) \"x\"\n  [\"n\"]=>\n  array(1) {\n    [0]=>\n    bool(true)\n  }\n}\n",
		VarDump(sampleArray()))
}

func TestFormatValueForDisplay(t *testing.T) {
	assert.Equal(t, `"a\nb"`, FormatValueForDisplay(value.Str("a\nb")))
	assert.Equal(t, "NULL", FormatValueForDisplay(nil))
	assert.Equal(t, `[0 => 1, "a" => "x", "n" => [0 => true]]`, FormatValueForDisplay(sampleArray()))
}

func TestFormatExported(t *testing.T) {
	data := map[string]interface{}{
		"b": []interface{}{int64(1), "two", nil},
		"a": true,
	}
	assert.Equal(t, `{"a" => true, "b" => [1, "two", NULL]}`, FormatExported(data))
}
