package exec

import (
	"context"
	"strings"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/value"
)

// evalFunction dispatches a non-aggregate FunctionCall; aggregate
// functions (COUNT/SUM/AVG/MIN/MAX/COLLECT) are only meaningful inside
// HashAggregate and are handled in aggregate.go instead, since they
// operate over a group of rows rather than one row's bindings.
//
// Grounded on the teacher's pkg/cypher/functions.go dispatch table
// (a name-keyed map of func(args []interface{}) (interface{}, error)),
// adapted to operate over value.Value and to fold the text-predicate
// functions from pkg/search in as ordinary function-call targets.
func (x *Executor) evalFunction(ctx context.Context, call *ast.FunctionCall, row BindingRow) (value.Value, error) {
	name := strings.TrimPrefix(call.Name, "INDEXED_")
	args := make([]value.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := x.evalExpr(ctx, a, row)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}

	switch name {
	case "HAS_LABELS":
		if len(args) == 0 || args[0].Kind != value.KindNode {
			return value.Bool(false), nil
		}
		node := args[0].Node
		for _, want := range args[1:] {
			found := false
			for _, l := range node.Labels {
				if l == want.Str {
					found = true
					break
				}
			}
			if !found {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil

	case "FUZZY_MATCH":
		// field ~= query desugars to the 2-arg form (parser/expr.go) and
		// gets the default distance; spec.md §4.3's 3-arg form lets a
		// caller tighten or loosen it explicitly.
		if len(args) < 2 || len(args) > 3 {
			return value.Value{}, &QueryError{Kind: "FUZZY_MATCH takes 2 or 3 arguments", Location: call.Location}
		}
		return value.Bool(textindex.FuzzyMatch(args[0].String(), args[1].String(), intArg(args, 2, 2))), nil
	case "CONTAINS_FUZZY":
		return value.Bool(textindex.ContainsFuzzy(args[0].String(), args[1].String(), intArg(args, 2, 2))), nil
	case "SIMILARITY_SCORE":
		return value.Number(textindex.SimilarityScore(args[0].String(), args[1].String())), nil
	case "WEIGHTED_SEARCH":
		return value.Number(textindex.WeightedSearch(args[0].String(), args[1].String(), floatArg(args, 2, 1), floatArg(args, 3, 1), floatArg(args, 4, 1))), nil
	case "KEYWORD_MATCH":
		return value.Bool(textindex.KeywordMatch(args[0].String(), stringArgs(args[1:]))), nil
	case "KEYWORD_MATCH_ALL":
		return value.Bool(textindex.KeywordMatchAll(args[0].String(), stringArgs(args[1:]))), nil
	case "FT_STARTS_WITH":
		return value.Bool(textindex.FTStartsWith(args[0].String(), args[1].String())), nil
	case "FT_ENDS_WITH":
		return value.Bool(textindex.FTEndsWith(args[0].String(), args[1].String())), nil
	case "FT_WILDCARD":
		return value.Bool(textindex.FTWildcard(args[0].String(), args[1].String())), nil
	case "FT_REGEX":
		ok, err := textindex.FTRegex(args[0].String(), args[1].String())
		if err != nil {
			return value.Value{}, &QueryError{Kind: "invalid FT_REGEX pattern", Location: call.Location, Cause: err}
		}
		return value.Bool(ok), nil
	case "FT_PHRASE_PREFIX":
		return value.Bool(textindex.FTPhrasePrefix(args[0].String(), args[1].String())), nil

	case "LENGTH", "SIZE":
		switch args[0].Kind {
		case value.KindList:
			return value.Number(float64(len(args[0].List))), nil
		case value.KindArray:
			return value.Number(float64(len(args[0].Arr))), nil
		case value.KindString:
			return value.Number(float64(len([]rune(args[0].Str)))), nil
		case value.KindPath:
			return value.Number(float64(len(args[0].Pth.Edges))), nil
		}
		return value.Null(), nil
	case "TOUPPER":
		return value.String(strings.ToUpper(args[0].String())), nil
	case "TOLOWER":
		return value.String(strings.ToLower(args[0].String())), nil
	case "COALESCE":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null(), nil
	case "ID":
		switch args[0].Kind {
		case value.KindNode:
			return value.String(args[0].Node.ID), nil
		case value.KindEdge:
			return value.String(args[0].Edge.ID), nil
		}
		return value.Null(), nil
	case "LABELS":
		if args[0].Kind != value.KindNode {
			return value.Null(), nil
		}
		items := make([]value.Value, len(args[0].Node.Labels))
		for i, l := range args[0].Node.Labels {
			items[i] = value.String(l)
		}
		return value.List(items), nil
	}
	return value.Value{}, &QueryError{Kind: "unknown function " + name, Location: call.Location}
}

func stringArgs(vs []value.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func intArg(args []value.Value, idx, def int) int {
	if idx < len(args) {
		return int(args[idx].Num)
	}
	return def
}

func floatArg(args []value.Value, idx int, def float64) float64 {
	if idx < len(args) {
		return args[idx].Num
	}
	return def
}
