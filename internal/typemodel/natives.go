package typemodel

// native describes a built-in arithmetic type and its host mappings.
type native struct {
	host string // value type in the host language
	ptr  string // element type of a typed buffer pointing at it
}

const (
	kotlinPkg  = "kotlin"
	cinterop   = "kotlinx.cinterop"
	posixPkg   = "platform.posix"
	unitType   = kotlinPkg + ".Unit"
	stringType = kotlinPkg + ".String"
	opaquePtr  = cinterop + ".COpaquePointer"
	valuesRef  = cinterop + ".CValuesRef"
)

var natives = map[string]native{
	"size_t":             {posixPkg + ".size_t", posixPkg + ".size_tVar"},
	"bool":               {kotlinPkg + ".Boolean", cinterop + ".BooleanVar"},
	"char":               {kotlinPkg + ".Byte", cinterop + ".ByteVar"},
	"signed char":        {kotlinPkg + ".Byte", cinterop + ".ByteVar"},
	"unsigned char":      {kotlinPkg + ".UByte", cinterop + ".UByteVar"},
	"short":              {kotlinPkg + ".Short", cinterop + ".ShortVar"},
	"unsigned short":     {kotlinPkg + ".UShort", cinterop + ".UShortVar"},
	"int":                {kotlinPkg + ".Int", cinterop + ".IntVar"},
	"unsigned int":       {kotlinPkg + ".UInt", cinterop + ".UIntVar"},
	"long":               {kotlinPkg + ".Long", cinterop + ".LongVar"},
	"unsigned long":      {kotlinPkg + ".ULong", cinterop + ".ULongVar"},
	"long long":          {kotlinPkg + ".Long", cinterop + ".LongVar"},
	"unsigned long long": {kotlinPkg + ".ULong", cinterop + ".ULongVar"},
	"float":              {kotlinPkg + ".Float", cinterop + ".FloatVar"},
	"double":             {kotlinPkg + ".Double", cinterop + ".DoubleVar"},
	"int8_t":             {kotlinPkg + ".Byte", cinterop + ".ByteVar"},
	"uint8_t":            {kotlinPkg + ".UByte", cinterop + ".UByteVar"},
	"int16_t":            {kotlinPkg + ".Short", cinterop + ".ShortVar"},
	"uint16_t":           {kotlinPkg + ".UShort", cinterop + ".UShortVar"},
	"int32_t":            {kotlinPkg + ".Int", cinterop + ".IntVar"},
	"uint32_t":           {kotlinPkg + ".UInt", cinterop + ".UIntVar"},
	"int64_t":            {kotlinPkg + ".Long", cinterop + ".LongVar"},
	"uint64_t":           {kotlinPkg + ".ULong", cinterop + ".ULongVar"},
}

// nativeAliases maps alternative spellings onto the keys of natives.
var nativeAliases = map[string]string{
	"short int":              "short",
	"signed short":           "short",
	"signed short int":       "short",
	"unsigned short int":     "unsigned short",
	"signed":                 "int",
	"signed int":             "int",
	"unsigned":               "unsigned int",
	"long int":               "long",
	"signed long":            "long",
	"signed long int":        "long",
	"unsigned long int":      "unsigned long",
	"long long int":          "long long",
	"signed long long":       "long long",
	"signed long long int":   "long long",
	"unsigned long long int": "unsigned long long",
}

func lookupNative(s string) (native, bool) {
	if alias, ok := nativeAliases[s]; ok {
		s = alias
	}
	n, ok := natives[s]
	return n, ok
}

func isNative(s string) bool {
	_, ok := lookupNative(s)
	return ok
}

// longDouble degrades to double on both sides of the boundary.
var longDouble = native{kotlinPkg + ".Double", cinterop + ".DoubleVar"}
