package types

import "gorm.io/gorm/clause"

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if expr := f.expression(); expr != nil {
		expr.Build(builder)
	}
}

func (f *CommonFilter) expression() clause.Expression {
	if len(f.Values) == 0 {
		return nil
	}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		return clause.Eq{Column: f.Field, Value: value}
	case CommonFilterOperatorNotEq:
		return clause.Neq{Column: f.Field, Value: value}
	case CommonFilterOperatorLt:
		return clause.Lt{Column: f.Field, Value: value}
	case CommonFilterOperatorLte:
		return clause.Lte{Column: f.Field, Value: value}
	case CommonFilterOperatorGt:
		return clause.Gt{Column: f.Field, Value: value}
	case CommonFilterOperatorGte:
		return clause.Gte{Column: f.Field, Value: value}
	case CommonFilterOperatorRange, CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return nil
		}
		return clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]})
	case CommonFilterOperatorIn:
		return clause.IN{Column: f.Field, Values: f.Values}
	default:
		return nil
	}
}

// Filters combines filters into a single AND expression usable in Where.
type Filters []*CommonFilter

func (fs Filters) Build(builder clause.Builder) {
	if len(fs) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(fs))
	for _, f := range fs {
		if e := f.expression(); e != nil {
			exprs = append(exprs, e)
		}
	}
	if len(exprs) == 0 {
		builder.WriteString("1=1")
		return
	}
	clause.And(exprs...).Build(builder)
}

// AllowFields drops filters on columns outside allowed so admin listing
// cannot address arbitrary SQL.
func (fs Filters) AllowFields(allowed ...string) Filters {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	out := make(Filters, 0, len(fs))
	for _, f := range fs {
		if f == nil {
			continue
		}
		if _, ok := set[f.Field]; ok {
			out = append(out, f)
		}
	}
	return out
}
