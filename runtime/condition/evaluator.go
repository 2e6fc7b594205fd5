package condition

import (
	"reflect"
	"strings"

	"github.com/spf13/cast"
	"github.com/viant/approval/model/state"
)

// Evaluate compiles and evaluates expression against variables. A comparison
// that references a missing variable evaluates to false.
func Evaluate(expression string, variables state.Variables) (bool, error) {
	compiled, err := Compile(expression)
	if err != nil {
		return false, err
	}
	return compiled.Evaluate(variables), nil
}

// Evaluate evaluates a compiled expression.
func (e *Expression) Evaluate(variables state.Variables) bool {
	return truth(e.root, variables)
}

func truth(node expr, vars state.Variables) bool {
	v, ok := node.value(vars)
	return ok && v.Truthy()
}

func (l *logical) value(vars state.Variables) (state.Value, bool) {
	left := truth(l.left, vars)
	if l.op == "&&" {
		return state.Bool(left && truth(l.right, vars)), true
	}
	return state.Bool(left || truth(l.right, vars)), true
}

func (c *comparison) value(vars state.Variables) (state.Value, bool) {
	left, ok := c.left.value(vars)
	if !ok {
		return state.Bool(false), true
	}
	right, ok := c.right.value(vars)
	if !ok {
		return state.Bool(false), true
	}
	return state.Bool(compare(c.op, left, right)), true
}

func (l *literal) value(state.Variables) (state.Value, bool) {
	return l.val, true
}

func (v *variable) value(vars state.Variables) (state.Value, bool) {
	return vars.Lookup(v.path)
}

func compare(op string, left, right state.Value) bool {
	lk, rk := left.Kind(), right.Kind()
	if lk == state.KindNull || rk == state.KindNull {
		return equality(op, lk == rk)
	}
	if lk == state.KindNumber || rk == state.KindNumber {
		lf, lok := left.Float()
		rf, rok := right.Float()
		if !lok || !rok {
			return equality(op, false)
		}
		return ordered(op, compareFloat(lf, rf))
	}
	if lk == state.KindBool || rk == state.KindBool {
		lb, lerr := cast.ToBoolE(left.Interface())
		rb, rerr := cast.ToBoolE(right.Interface())
		if lerr != nil || rerr != nil {
			return equality(op, false)
		}
		return equality(op, lb == rb)
	}
	if lk == state.KindString && rk == state.KindString {
		return ordered(op, strings.Compare(left.String(), right.String()))
	}
	return equality(op, reflect.DeepEqual(left.Interface(), right.Interface()))
}

func compareFloat(l, r float64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

// equality applies == and != to an equality result; ordering operators are false.
func equality(op string, equal bool) bool {
	switch op {
	case "==":
		return equal
	case "!=":
		return !equal
	}
	return false
}

func ordered(op string, cmp int) bool {
	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}
