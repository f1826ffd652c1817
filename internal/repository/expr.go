package repository

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// update collects the SET and ADD clauses of one write and the condition guarding it.
type update struct {
	upd     expression.UpdateBuilder
	hasUpd  bool
	cond    expression.ConditionBuilder
	guarded bool
}

func newUpdate() *update {
	return &update{}
}

// path joins segments into a document path. Segments are attribute names or user
// ids, which never contain dots.
func path(segments ...string) expression.NameBuilder {
	return expression.Name(strings.Join(segments, "."))
}

func (u *update) set(v any, segments ...string) *update {
	name, val := path(segments...), expression.Value(stored(v))
	if u.hasUpd {
		u.upd = u.upd.Set(name, val)
	} else {
		u.upd, u.hasUpd = expression.Set(name, val), true
	}
	return u
}

func (u *update) add(v any, segments ...string) *update {
	name, val := path(segments...), expression.Value(stored(v))
	if u.hasUpd {
		u.upd = u.upd.Add(name, val)
	} else {
		u.upd, u.hasUpd = expression.Add(name, val), true
	}
	return u
}

func (u *update) require(c expression.ConditionBuilder) *update {
	if u.guarded {
		u.cond = u.cond.And(c)
	} else {
		u.cond, u.guarded = c, true
	}
	return u
}

// requireEq guards the write on the attribute at segments still equalling v.
func (u *update) requireEq(v any, segments ...string) *update {
	return u.require(path(segments...).Equal(expression.Value(stored(v))))
}

func (u *update) requireExists() *update {
	return u.require(expression.AttributeExists(expression.Name("PK")))
}

func (u *update) build() (expression.Expression, error) {
	b := expression.NewBuilder().WithUpdate(u.upd)
	if u.guarded {
		b = b.WithCondition(u.cond)
	}
	return b.Build()
}

// filterCondition joins query filters with AND. ok is false when there are none.
func filterCondition(filters []Filter) (cond expression.ConditionBuilder, ok bool, err error) {
	for i, f := range filters {
		if strings.TrimSpace(f.Field) == "" {
			return cond, false, fmt.Errorf("repository: filter %d has no field", i)
		}
		c, err := f.condition()
		if err != nil {
			return cond, false, fmt.Errorf("repository: filter %q: %w", f.Field, err)
		}
		if ok {
			cond = cond.And(c)
		} else {
			cond, ok = c, true
		}
	}
	return cond, ok, nil
}

func (f Filter) condition() (expression.ConditionBuilder, error) {
	name, val := expression.Name(f.Field), expression.Value(stored(f.Value))
	switch f.Op {
	case OpEq:
		return name.Equal(val), nil
	case OpNe:
		return name.NotEqual(val), nil
	case OpLt:
		return name.LessThan(val), nil
	case OpLe:
		return name.LessThanEqual(val), nil
	case OpGt:
		return name.GreaterThan(val), nil
	case OpGe:
		return name.GreaterThanEqual(val), nil
	case OpContains:
		s, ok := f.Value.(string)
		if !ok {
			return expression.ConditionBuilder{}, fmt.Errorf("contains needs a string, got %T", f.Value)
		}
		return expression.Contains(name, s), nil
	case OpAbsentOrNe:
		return expression.Or(expression.AttributeNotExists(name), name.NotEqual(val)), nil
	}
	return expression.ConditionBuilder{}, fmt.Errorf("unsupported operator %q", f.Op)
}
