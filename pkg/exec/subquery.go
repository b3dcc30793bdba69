package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/cache"
	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/value"
)

// subqueryKindString renders a logicalplan.SubqueryKind the way cache.Key
// wants its kind discriminator: a short label, not the numeric value,
// so the cache key doesn't silently collide if the kind enum's values
// are ever renumbered.
func subqueryKindString(k logicalplan.SubqueryKind) string {
	switch k {
	case logicalplan.SubqueryExists:
		return "EXISTS"
	case logicalplan.SubqueryNotExists:
		return "NOT_EXISTS"
	case logicalplan.SubqueryIn:
		return "IN"
	case logicalplan.SubqueryNotIn:
		return "NOT_IN"
	case logicalplan.SubqueryScalar:
		return "SCALAR"
	default:
		return "UNKNOWN"
	}
}

// structuralHash stands in for "normalized subquery text" (spec.md
// §4.9's cache key component): the raw source span of a correlated
// subquery isn't threaded past parsing into the physical plan, but the
// plan tree itself is a deterministic, content-addressable proxy for
// the same thing — two occurrences of the same subquery text produce
// structurally identical plan trees. The hashed text is the tree's
// operator types followed by the JSON encoding of its exported fields,
// so it never includes pointer addresses.
func structuralHash(p physicalplan.Plan) uint64 {
	var sb strings.Builder
	writePlanTypes(&sb, p)
	b, err := json.Marshal(p)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", p))
	}
	sb.Write(b)
	return cache.NormalizedHash(sb.String())
}

func writePlanTypes(sb *strings.Builder, p physicalplan.Plan) {
	fmt.Fprintf(sb, "%T(", p)
	for _, c := range p.Children() {
		writePlanTypes(sb, c)
	}
	sb.WriteString(")")
}

// outerRowNames collects row's current keys, sorted, as the projection
// BindingsHash hashes over. Using the full outer row rather than just
// the names the subquery body actually references is a documented
// simplification: it can only make the cache key more specific than
// strictly necessary (an unrelated outer-variable change invalidates a
// hit it didn't need to), never less correct.
func outerRowNames(row BindingRow) []string {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// evalSubquery runs p.Inner correlated to each p.Input row (the outer
// row's bindings seed the inner plan's leaf scans, per eval's seed
// parameter) and appends a boolean (Exists/NotExists/In/NotIn) or scalar
// column under p.Alias, per spec.md §4.5's four subquery forms.
func (x *Executor) evalSubquery(ctx context.Context, p *physicalplan.SubqueryEvalExec, seed BindingRow) ([]BindingRow, error) {
	outer, err := x.eval(ctx, p.Input, seed)
	if err != nil {
		return nil, err
	}

	structHash := structuralHash(p.Inner)
	kindStr := subqueryKindString(p.Kind)

	var out []BindingRow
	for _, row := range outer {
		nr := row.clone()

		var cacheKey uint64
		var useCache bool
		if x.Cache != nil {
			cacheKey = cache.Key(structHash, cache.BindingsHash(row, outerRowNames(row)), x.GraphVersion, x.SchemaVersion, kindStr)
			if cached, ok := x.Cache.Get(cacheKey, x.GraphVersion, x.SchemaVersion); ok {
				applySubqueryResult(p, nr, cached)
				out = append(out, nr)
				continue
			}
			useCache = true
		}

		innerRows, err := x.eval(ctx, p.Inner, row)
		if err != nil {
			return nil, err
		}

		var result cache.Result
		switch p.Kind {
		case logicalplan.SubqueryExists:
			b := len(innerRows) > 0
			nr[p.Alias] = value.Bool(b)
			result = cache.Result{Kind: cache.KindBool, Bool: b}
		case logicalplan.SubqueryNotExists:
			b := len(innerRows) == 0
			nr[p.Alias] = value.Bool(b)
			result = cache.Result{Kind: cache.KindBool, Bool: b}
		case logicalplan.SubqueryIn, logicalplan.SubqueryNotIn:
			probe, err := x.evalExpr(ctx, p.Probe, row)
			if err != nil {
				return nil, err
			}
			found := false
			for _, ir := range innerRows {
				if probe.Equal(firstColumnValue(ir)) {
					found = true
					break
				}
			}
			if p.Kind == logicalplan.SubqueryNotIn {
				found = !found
			}
			nr[p.Alias] = value.Bool(found)
			result = cache.Result{Kind: cache.KindBool, Bool: found}
		case logicalplan.SubqueryScalar:
			var scalar value.Value
			if len(innerRows) > 0 {
				scalar = firstColumnValue(innerRows[0])
			} else {
				scalar = value.Null()
			}
			nr[p.Alias] = scalar
			result = cache.Result{Kind: cache.KindScalar, Scalar: scalar}
		}

		if useCache {
			x.Cache.Put(cacheKey, result, x.GraphVersion, x.SchemaVersion)
		}
		out = append(out, nr)
	}
	return out, nil
}

// applySubqueryResult re-derives nr[p.Alias] from a cached result. The
// cache key is already derived from the full outer row's bindings hash
// (outerRowNames), so an IN/NOT_IN probe value is implicitly part of
// the key — a hit can only occur for a row whose probe would evaluate
// the same way, making it safe to reuse the stored boolean directly.
func applySubqueryResult(p *physicalplan.SubqueryEvalExec, nr BindingRow, cached cache.Result) {
	switch p.Kind {
	case logicalplan.SubqueryExists, logicalplan.SubqueryNotExists, logicalplan.SubqueryIn, logicalplan.SubqueryNotIn:
		nr[p.Alias] = value.Bool(cached.Bool)
	case logicalplan.SubqueryScalar:
		nr[p.Alias] = cached.Scalar
	}
}

// firstColumnValue picks the lexicographically-first bound column of row.
// A correlated subquery's RETURN is expected to project exactly one
// column; ties only arise if the inner query projects more than one,
// which spec.md's grammar doesn't allow for a scalar/IN subquery body.
func firstColumnValue(row BindingRow) value.Value {
	if len(row) == 0 {
		return value.Null()
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return row[keys[0]]
}

// evalInlineSubquery handles a SubqueryExpr encountered inline inside a
// larger boolean expression (e.g. `WHERE a.active AND EXISTS {...}`),
// rather than as a bare top-level WHERE predicate, which
// logicalplan.applyWhere already lowers into a SubqueryEvalExec. It
// builds and plans ex.Query fresh per call and runs it correlated to
// row, the same seeding mechanism evalSubquery uses.
func (x *Executor) evalInlineSubquery(ctx context.Context, ex *ast.SubqueryExpr, row BindingRow) (value.Value, error) {
	outerVars := make(map[string]struct{}, len(row))
	for k := range row {
		outerVars[k] = struct{}{}
	}
	lp, err := logicalplan.BuildCorrelated(ex.Query, outerVars)
	if err != nil {
		return value.Value{}, &QueryError{Kind: "invalid subquery", Location: ex.Location, Cause: err}
	}
	pp := physicalplan.Plan(logicalplan.Optimize(lp), physicalplan.GraphStats{})
	innerRows, err := x.eval(ctx, pp, row)
	if err != nil {
		return value.Value{}, err
	}

	switch ex.Kind {
	case ast.SubqueryExists:
		return value.Bool(len(innerRows) > 0), nil
	case ast.SubqueryNotExists:
		return value.Bool(len(innerRows) == 0), nil
	case ast.SubqueryIn, ast.SubqueryNotIn:
		probe, err := x.evalExpr(ctx, ex.Probe, row)
		if err != nil {
			return value.Value{}, err
		}
		found := false
		for _, ir := range innerRows {
			if probe.Equal(firstColumnValue(ir)) {
				found = true
				break
			}
		}
		if ex.Kind == ast.SubqueryNotIn {
			found = !found
		}
		return value.Bool(found), nil
	case ast.SubqueryScalar:
		if len(innerRows) > 0 {
			return firstColumnValue(innerRows[0]), nil
		}
		return value.Null(), nil
	}
	return value.Null(), nil
}
