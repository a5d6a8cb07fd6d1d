package functions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser applies English title casing rules.
var titleCaser = cases.Title(language.English)

// builtins returns the default helper functions.
func builtins() []Function {
	var fns []Function
	fns = append(fns, stringBuiltins()...)
	fns = append(fns, conversionBuiltins()...)
	fns = append(fns, utilityBuiltins()...)
	return fns
}

// stringBuiltins returns string manipulation helpers.
func stringBuiltins() []Function {
	return []Function{
		{
			Name:        "upper",
			Description: "converts a string to upper case",
			Option: cel.Function("upper",
				cel.Overload("upper_string",
					[]*cel.Type{cel.StringType},
					cel.StringType,
					cel.UnaryBinding(func(val ref.Val) ref.Val {
						return stringUnary("upper", val, strings.ToUpper)
					}),
				),
			),
		},
		{
			Name:        "lower",
			Description: "converts a string to lower case",
			Option: cel.Function("lower",
				cel.Overload("lower_string",
					[]*cel.Type{cel.StringType},
					cel.StringType,
					cel.UnaryBinding(func(val ref.Val) ref.Val {
						return stringUnary("lower", val, strings.ToLower)
					}),
				),
			),
		},
		{
			Name:        "titlecase",
			Description: "converts a string to English title case",
			Option: cel.Function("titlecase",
				cel.Overload("titlecase_string",
					[]*cel.Type{cel.StringType},
					cel.StringType,
					cel.UnaryBinding(func(val ref.Val) ref.Val {
						return stringUnary("titlecase", val, titleCaser.String)
					}),
				),
			),
		},
		{
			Name:        "trim",
			Description: "removes leading and trailing whitespace",
			Option: cel.Function("trim",
				cel.Overload("trim_string",
					[]*cel.Type{cel.StringType},
					cel.StringType,
					cel.UnaryBinding(func(val ref.Val) ref.Val {
						return stringUnary("trim", val, strings.TrimSpace)
					}),
				),
			),
		},
		{
			Name:        "replace",
			Description: "replaces all occurrences of a substring",
			Option: cel.Function("replace",
				cel.Overload("replace_string_string_string",
					[]*cel.Type{cel.StringType, cel.StringType, cel.StringType},
					cel.StringType,
					cel.FunctionBinding(replaceBinding),
				),
			),
		},
	}
}

// conversionBuiltins returns number and string conversion helpers.
func conversionBuiltins() []Function {
	return []Function{
		{
			Name:        "parseInt",
			Description: "parses a decimal string into an integer",
			Option: cel.Function("parseInt",
				cel.Overload("parseInt_string",
					[]*cel.Type{cel.StringType},
					cel.IntType,
					cel.UnaryBinding(parseIntBinding),
				),
			),
		},
		{
			Name:        "parseFloat",
			Description: "parses a decimal string into a float",
			Option: cel.Function("parseFloat",
				cel.Overload("parseFloat_string",
					[]*cel.Type{cel.StringType},
					cel.DoubleType,
					cel.UnaryBinding(parseFloatBinding),
				),
			),
		},
		{
			Name:        "toString",
			Description: "renders any value as a string",
			Option: cel.Function("toString",
				cel.Overload("toString_dyn",
					[]*cel.Type{cel.DynType},
					cel.StringType,
					cel.UnaryBinding(toStringBinding),
				),
			),
		},
	}
}

// utilityBuiltins returns general-purpose helpers.
func utilityBuiltins() []Function {
	return []Function{
		{
			Name:        "coalesce",
			Description: "returns the first non-null argument",
			Option: cel.Function("coalesce",
				cel.Overload("coalesce_dyn_dyn",
					[]*cel.Type{cel.DynType, cel.DynType},
					cel.DynType,
					cel.BinaryBinding(coalesceBinding),
				),
			),
		},
		{
			Name:        "defaultIfEmpty",
			Description: "returns the fallback when the string is blank",
			Option: cel.Function("defaultIfEmpty",
				cel.Overload("defaultIfEmpty_string_string",
					[]*cel.Type{cel.StringType, cel.StringType},
					cel.StringType,
					cel.BinaryBinding(defaultIfEmptyBinding),
				),
			),
		},
		{
			Name:        "uuid",
			Description: "generates a random UUID string",
			Option: cel.Function("uuid",
				cel.Overload("uuid",
					[]*cel.Type{},
					cel.StringType,
					cel.FunctionBinding(func(_ ...ref.Val) ref.Val {
						return types.String(uuid.NewString())
					}),
				),
			),
		},
	}
}

// stringUnary applies fn to a single string argument.
func stringUnary(name string, val ref.Val, fn func(string) string) ref.Val {
	s, ok := val.Value().(string)
	if !ok {
		return types.NewErr("%s: expected string, got %T", name, val.Value())
	}
	return types.String(fn(s))
}

// replaceBinding replaces all occurrences of the second argument with the third.
func replaceBinding(args ...ref.Val) ref.Val {
	if len(args) != 3 {
		return types.NewErr("replace: expected 3 arguments, got %d", len(args))
	}

	s, sOK := args[0].Value().(string)
	old, oldOK := args[1].Value().(string)
	repl, replOK := args[2].Value().(string)
	if !sOK || !oldOK || !replOK {
		return types.NewErr("replace: all arguments must be strings")
	}

	return types.String(strings.ReplaceAll(s, old, repl))
}

// parseIntBinding parses a decimal string into an int.
func parseIntBinding(val ref.Val) ref.Val {
	s, ok := val.Value().(string)
	if !ok {
		return types.NewErr("parseInt: expected string, got %T", val.Value())
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return types.NewErr("parseInt: cannot parse %q", s)
	}
	return types.Int(n)
}

// parseFloatBinding parses a decimal string into a double.
func parseFloatBinding(val ref.Val) ref.Val {
	s, ok := val.Value().(string)
	if !ok {
		return types.NewErr("parseFloat: expected string, got %T", val.Value())
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return types.NewErr("parseFloat: cannot parse %q", s)
	}
	return types.Double(f)
}

// toStringBinding renders any value as a string.
func toStringBinding(val ref.Val) ref.Val {
	if s, ok := val.Value().(string); ok {
		return types.String(s)
	}
	return types.String(fmt.Sprintf("%v", val.Value()))
}

// coalesceBinding returns the first argument unless it is null.
func coalesceBinding(first, second ref.Val) ref.Val {
	if first == nil {
		return second
	}
	if _, isNull := first.(types.Null); isNull {
		return second
	}
	if first.Value() == nil {
		return second
	}
	return first
}

// defaultIfEmptyBinding returns the fallback when the string is blank.
func defaultIfEmptyBinding(val, fallback ref.Val) ref.Val {
	s, ok := val.Value().(string)
	if !ok {
		return types.NewErr("defaultIfEmpty: expected string, got %T", val.Value())
	}
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return val
}
