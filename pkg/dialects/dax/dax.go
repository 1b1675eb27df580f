// Package dax provides the DAX translation target: the function rule table
// and operator spellings used when rewriting calculation formulas as
// Power BI measures.
//
// Confidence values for approximate rules are fixed per entry and chosen
// conservatively; see the Caveat on each rule for what differs.
package dax

import (
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	"github.com/leapstack-labs/vizmigrate/pkg/token"
)

func init() {
	dialect.Register(DAX)
}

// DAX is the built-in DAX dialect.
var DAX = dialect.NewDialect("dax").
	// Operators
	AddOperator(token.EQ, "=").
	AddOperator(token.NE, "<>").
	AddOperator(token.LT, "<").
	AddOperator(token.GT, ">").
	AddOperator(token.LE, "<=").
	AddOperator(token.GE, ">=").
	AddOperator(token.PLUS, "+").
	AddOperator(token.MINUS, "-").
	AddOperator(token.STAR, "*").
	AddOperator(token.SLASH, "/").
	AddOperator(token.CARET, "^").
	AddOperator(token.AND, "&&").
	AddOperator(token.OR, "||").
	AddFuncOperator(token.PERCENT, "MOD").
	AddFuncOperator(token.NOT, "NOT").
	Concat("&").
	// Aggregates
	Aggregates(map[string]string{
		"SUM":    "SUM",
		"AVG":    "AVERAGE",
		"MIN":    "MIN",
		"MAX":    "MAX",
		"COUNT":  "COUNT",
		"COUNTD": "DISTINCTCOUNT",
		"MEDIAN": "MEDIAN",
		"STDEV":  "STDEV.S",
		"STDEVP": "STDEV.P",
		"VAR":    "VAR.S",
		"VARP":   "VAR.P",
	}, map[string]string{
		"SUM":    "SUMX",
		"AVG":    "AVERAGEX",
		"MIN":    "MINX",
		"MAX":    "MAXX",
		"COUNT":  "COUNTX",
		"MEDIAN": "MEDIANX",
		"STDEV":  "STDEVX.S",
		"STDEVP": "STDEVX.P",
		"VAR":    "VARX.S",
		"VARP":   "VARX.P",
	}).
	Rule(dialect.Rule{
		Name: "ATTR", Target: "SELECTEDVALUE", Kind: dialect.KindApproximate, Aggregate: true,
		Confidence: 0.8, Caveat: "attr_returns_blank_not_star",
	}).
	Rule(dialect.Rule{
		Name: "PERCENTILE", Target: "PERCENTILE.INC", Kind: dialect.KindDirect, Aggregate: true,
	}).
	// Row-level functions with identical names or simple renames
	Direct(map[string]string{
		// Math
		"ABS": "ABS", "ROUND": "ROUND", "SQRT": "SQRT", "EXP": "EXP", "LN": "LN",
		"LOG": "LOG", "POWER": "POWER", "SIGN": "SIGN", "PI": "PI",
		"SIN": "SIN", "COS": "COS", "TAN": "TAN", "ASIN": "ASIN", "ACOS": "ACOS",
		"ATAN": "ATAN", "COT": "COT", "DEGREES": "DEGREES", "RADIANS": "RADIANS",
		"DIV": "QUOTIENT", "INT": "INT",
		// String
		"LEN": "LEN", "UPPER": "UPPER", "LOWER": "LOWER", "LEFT": "LEFT",
		"RIGHT": "RIGHT", "MID": "MID", "TRIM": "TRIM",
		"CONTAINS": "CONTAINSSTRING", "REPLACE": "SUBSTITUTE",
		// Logical
		"IIF": "IF",
		// Date
		"TODAY": "TODAY", "NOW": "NOW", "YEAR": "YEAR", "QUARTER": "QUARTER",
		"MONTH": "MONTH", "DAY": "DAY", "MAKEDATE": "DATE", "MAKETIME": "TIME",
	}).
	Template("ZN", "IF(ISBLANK($1), 0, $1)", 1, 1, "").
	Template("IFNULL", "IF(ISBLANK($1), $2, $1)", 2, 1, "").
	Template("SPACE", `REPT(" ", $1)`, 1, 1, "").
	Template("SQUARE", "POWER($1, 2)", 1, 1, "").
	Template("CEILING", "CEILING($1, 1)", 1, 1, "").
	Template("FLOOR", "FLOOR($1, 1)", 1, 1, "").
	Template("FIND", "FIND($2, $1, 1, 0)", 2, 1, "").
	Template("STARTSWITH", "LEFT($1, LEN($2)) = $2", 2, 1, "").
	Template("ENDSWITH", "RIGHT($1, LEN($2)) = $2", 2, 1, "").
	Template("STR", `FORMAT($1, "General")`, 1, 0.8, "format_string_differs").
	Template("LTRIM", "TRIM($1)", 1, 0.7, "trims_both_sides").
	Template("RTRIM", "TRIM($1)", 1, 0.7, "trims_both_sides").
	Approximate("FLOAT", "VALUE", 0.9, "numeric_coercion").
	Approximate("DATE", "DATEVALUE", 0.8, "date_parsing_locale").
	Approximate("DATETIME", "DATEVALUE", 0.7, "time_component_dropped").
	Approximate("ISNULL", "ISBLANK", 0.9, "null_vs_blank").
	Approximate("ASCII", "UNICODE", 0.9, "unicode_code_points").
	Approximate("CHAR", "UNICHAR", 0.9, "unicode_code_points").
	Approximate("WEEK", "WEEKNUM", 0.9, "week_start_convention").
	Approximate("USERNAME", "USERPRINCIPALNAME", 0.7, "identity_provider_format").
	Approximate("FULLNAME", "USERNAME", 0.6, "identity_provider_format").
	// Date-part driven rewrites
	DateParts("DATEPART", 1, map[string]string{
		"year":    "YEAR($2)",
		"quarter": "QUARTER($2)",
		"month":   "MONTH($2)",
		"week":    "WEEKNUM($2)",
		"weekday": "WEEKDAY($2)",
		"day":     "DAY($2)",
		"hour":    "HOUR($2)",
		"minute":  "MINUTE($2)",
		"second":  "SECOND($2)",
	}, 0.9, "date_part_mapping").
	DateParts("DATETRUNC", 1, map[string]string{
		"year":    "DATE(YEAR($2), 1, 1)",
		"quarter": "DATE(YEAR($2), QUARTER($2) * 3 - 2, 1)",
		"month":   "DATE(YEAR($2), MONTH($2), 1)",
		"week":    "$2 - WEEKDAY($2, 2) + 1",
		"day":     "DATE(YEAR($2), MONTH($2), DAY($2))",
	}, 0.6, "week_start_convention").
	DateParts("DATENAME", 1, map[string]string{
		"year":    `FORMAT($2, "yyyy")`,
		"quarter": `"Q" & QUARTER($2)`,
		"month":   `FORMAT($2, "mmmm")`,
		"weekday": `FORMAT($2, "dddd")`,
		"day":     `FORMAT($2, "d")`,
	}, 0.7, "locale_dependent_names").
	DateParts("DATEADD", 1, map[string]string{
		"year":    "EDATE($3, 12 * $2)",
		"quarter": "EDATE($3, 3 * $2)",
		"month":   "EDATE($3, $2)",
		"week":    "$3 + 7 * $2",
		"day":     "$3 + $2",
	}, 0.8, "date_arithmetic_returns_date").
	DateParts("DATEDIFF", 1, map[string]string{
		"year":    "DATEDIFF($2, $3, YEAR)",
		"quarter": "DATEDIFF($2, $3, QUARTER)",
		"month":   "DATEDIFF($2, $3, MONTH)",
		"week":    "DATEDIFF($2, $3, WEEK)",
		"day":     "DATEDIFF($2, $3, DAY)",
		"hour":    "DATEDIFF($2, $3, HOUR)",
		"minute":  "DATEDIFF($2, $3, MINUTE)",
		"second":  "DATEDIFF($2, $3, SECOND)",
	}, 0.9, "boundary_counting").
	// Never translated
	LodBlocks("FIXED", "INCLUDE", "EXCLUDE").
	TableCalcs(
		"RUNNING_SUM", "RUNNING_AVG", "RUNNING_COUNT", "RUNNING_MAX", "RUNNING_MIN",
		"WINDOW_SUM", "WINDOW_AVG", "WINDOW_COUNT", "WINDOW_MAX", "WINDOW_MIN",
		"WINDOW_MEDIAN", "WINDOW_STDEV", "WINDOW_STDEVP", "WINDOW_VAR", "WINDOW_VARP",
		"WINDOW_PERCENTILE",
		"RANK", "RANK_DENSE", "RANK_MODIFIED", "RANK_UNIQUE", "RANK_PERCENTILE",
		"INDEX", "FIRST", "LAST", "SIZE", "LOOKUP", "PREVIOUS_VALUE", "TOTAL",
	).
	TableCalcPrefixes("RUNNING_", "WINDOW_", "RANK").
	Scripts("SCRIPT_BOOL", "SCRIPT_INT", "SCRIPT_REAL", "SCRIPT_STR").
	ScriptPrefixes("SCRIPT_").
	Unsupported(dialect.CategoryOther, dialect.ReasonNoEquivalent,
		"SPLIT", "REGEXP_MATCH", "REGEXP_EXTRACT", "REGEXP_EXTRACT_NTH", "REGEXP_REPLACE",
		"HEXBINX", "HEXBINY", "ISMEMBEROF", "ISDATE", "ATAN2",
	).
	Unsupported(dialect.CategoryOther, "pass_through_sql",
		"RAWSQL_BOOL", "RAWSQL_DATE", "RAWSQL_DATETIME", "RAWSQL_INT", "RAWSQL_REAL", "RAWSQL_STR",
		"RAWSQLAGG_BOOL", "RAWSQLAGG_DATE", "RAWSQLAGG_DATETIME", "RAWSQLAGG_INT", "RAWSQLAGG_REAL", "RAWSQLAGG_STR",
	).
	Describe(map[string]string{
		"SUM":       "Sum of values; SUMX when the argument is an expression.",
		"COUNTD":    "Distinct count.",
		"ATTR":      "Single value of a dimension; returns blank instead of * when ambiguous.",
		"ZN":        "Replaces blank with zero.",
		"IFNULL":    "Replaces blank with a fallback value.",
		"FIND":      "Case-sensitive search; arguments are swapped.",
		"DATETRUNC": "Truncates a date; week truncation assumes Monday week start.",
		"DATEDIFF":  "Arguments reordered to DATEDIFF(start, end, PART).",
		"DATEADD":   "Rewritten as EDATE or day arithmetic.",
		"FIXED":     "Level-of-detail expressions have no measure equivalent.",
		"LOOKUP":    "Table calculations depend on view layout.",
	}).
	Build()
