package ir

// OperatorClass groups operators by how the shim exposes them.
type OperatorClass string

const (
	OpClassBinary    OperatorClass = "binary"
	OpClassAssign    OperatorClass = "assign"
	OpClassUnary     OperatorClass = "unary"
	OpClassReference OperatorClass = "reference"
)

// Operator identifies an overloaded C++ operator. The zero value means the
// method is not an operator.
type Operator string

// OperatorInfo describes one entry of the operator table.
type OperatorInfo struct {
	Cpp   string        // C++ spelling after `operator`
	C     string        // suffix used in generated C symbols
	Host  string        // host-language operator function name
	Class OperatorClass // argument shape
}

const (
	OpNone             Operator = ""
	OpMinus            Operator = "minus"
	OpPlus             Operator = "plus"
	OpTimes            Operator = "times"
	OpDiv              Operator = "div"
	OpMod              Operator = "mod"
	OpEq               Operator = "eq"
	OpNeq              Operator = "neq"
	OpLt               Operator = "lt"
	OpGt               Operator = "gt"
	OpLtEq             Operator = "lteq"
	OpGtEq             Operator = "gteq"
	OpBinaryAnd        Operator = "binary_and"
	OpBinaryOr         Operator = "binary_or"
	OpAnd              Operator = "and"
	OpOr               Operator = "or"
	OpXor              Operator = "xor"
	OpShl              Operator = "shl"
	OpShr              Operator = "shr"
	OpInd              Operator = "ind"
	OpPostInc          Operator = "post_inc"
	OpPostDec          Operator = "post_dec"
	OpAssign           Operator = "assign"
	OpPlusEquals       Operator = "plus_equals"
	OpMinusEquals      Operator = "minus_equals"
	OpTimesEquals      Operator = "times_equals"
	OpDivEquals        Operator = "div_equals"
	OpInc              Operator = "inc"
	OpDec              Operator = "dec"
	OpUnaryMinus       Operator = "unary_minus"
	OpUnaryPlus        Operator = "unary_plus"
	OpNot              Operator = "not"
	OpInv              Operator = "inv"
	OpReference        Operator = "reference"
	OpPointerReference Operator = "pointer_reference"
)

var operators = map[Operator]OperatorInfo{
	OpMinus:            {"-", "minus", "minus", OpClassBinary},
	OpPlus:             {"+", "plus", "plus", OpClassBinary},
	OpTimes:            {"*", "times", "times", OpClassBinary},
	OpDiv:              {"/", "div", "div", OpClassBinary},
	OpMod:              {"%", "mod", "rem", OpClassBinary},
	OpEq:               {"==", "eq", "eq", OpClassBinary},
	OpNeq:              {"!=", "neq", "neq", OpClassBinary},
	OpLt:               {"<", "lt", "lt", OpClassBinary},
	OpGt:               {">", "gt", "gt", OpClassBinary},
	OpLtEq:             {"<=", "lteq", "lteq", OpClassBinary},
	OpGtEq:             {">=", "gteq", "gteq", OpClassBinary},
	OpBinaryAnd:        {"&", "binary_and", "binaryAnd", OpClassBinary},
	OpBinaryOr:         {"|", "binary_or", "binaryOr", OpClassBinary},
	OpAnd:              {"&&", "and", "and", OpClassBinary},
	OpOr:               {"||", "or", "or", OpClassBinary},
	OpXor:              {"^", "xor", "xor", OpClassBinary},
	OpShl:              {"<<", "shl", "shl", OpClassBinary},
	OpShr:              {">>", "shr", "shr", OpClassBinary},
	OpInd:              {"[]", "ind", "get", OpClassBinary},
	OpPostInc:          {"++", "post_inc", "postInc", OpClassBinary},
	OpPostDec:          {"--", "post_dec", "postDec", OpClassBinary},
	OpAssign:           {"=", "assign", "assign", OpClassAssign},
	OpPlusEquals:       {"+=", "plus_equals", "plusAssign", OpClassAssign},
	OpMinusEquals:      {"-=", "minus_equals", "minusAssign", OpClassAssign},
	OpTimesEquals:      {"*=", "times_equals", "timesAssign", OpClassAssign},
	OpDivEquals:        {"/=", "div_equals", "divAssign", OpClassAssign},
	OpInc:              {"++", "inc", "inc", OpClassUnary},
	OpDec:              {"--", "dec", "dec", OpClassUnary},
	OpUnaryMinus:       {"-", "unary_minus", "unaryMinus", OpClassUnary},
	OpUnaryPlus:        {"+", "unary_plus", "unaryPlus", OpClassUnary},
	OpNot:              {"!", "not", "not", OpClassUnary},
	OpInv:              {"~", "inv", "inv", OpClassUnary},
	OpReference:        {"*", "reference", "reference", OpClassReference},
	OpPointerReference: {"->", "pointer_reference", "pointerReference", OpClassReference},
}

// Info returns the table entry for op.
func (op Operator) Info() (OperatorInfo, bool) {
	info, ok := operators[op]
	return info, ok
}

// LookupOperator finds the operator for a C++ spelling and arity (number of
// explicit parameters). Unary and binary spellings collide (`-`, `++`, `*`),
// so arity decides.
func LookupOperator(cpp string, arity int) (Operator, bool) {
	switch cpp {
	case "-":
		if arity == 0 {
			return OpUnaryMinus, true
		}
		return OpMinus, true
	case "+":
		if arity == 0 {
			return OpUnaryPlus, true
		}
		return OpPlus, true
	case "*":
		if arity == 0 {
			return OpReference, true
		}
		return OpTimes, true
	case "++":
		if arity == 0 {
			return OpInc, true
		}
		return OpPostInc, true
	case "--":
		if arity == 0 {
			return OpDec, true
		}
		return OpPostDec, true
	}
	for op, info := range operators {
		if info.Cpp == cpp {
			return op, true
		}
	}
	return OpNone, false
}
