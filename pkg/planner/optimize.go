package planner

// Optimize rewrites a plan tree bottom-up, pushing WherePlan filters
// down into any child that reports CanHandle for that filter's field,
// replacing the WherePlan/child pair with the child's own PushDown
// result so the filter runs once, inside the source, instead of as a
// second pass over already-materialized rows.
func Optimize(p Plan) Plan {
	switch n := p.(type) {
	case *WherePlan:
		child := Optimize(n.Child)
		if pushable, ok := child.(Pushable); ok && pushable.CanHandle(n.Expr) {
			return pushable.PushDown(n.Expr)
		}
		return NewWherePlan(child, n.Expr)
	case *AndMergePlan:
		children := make([]Plan, len(n.Children))
		for i, c := range n.Children {
			children[i] = Optimize(c)
		}
		return NewAndMergePlan(children...)
	case *GroupByPlan:
		return NewGroupByPlan(Optimize(n.Child), n.Field, n.Agg)
	case *VectorSearchPlan:
		return NewVectorSearchPlan(Optimize(n.Child), n.Index, n.Query, n.K, n.OutputField)
	default:
		return p
	}
}

// Explain renders p's tree as the single-line description chain
// produced by each node's Explain, after optimization, so callers can
// see the plan actually executed rather than the one they built.
func Explain(p Plan) string {
	return Optimize(p).Explain()
}
