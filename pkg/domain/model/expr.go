package model

import (
	"github.com/Knetic/govaluate"
	"github.com/m-mizutani/goerr/v2"
)

// conditionIdents lists the identifiers an if-expression may reference.
// Matrix parameters appear as matrix_<key> and event fields as
// event_<field>. Release steps run outside any combination, so matrix
// identifiers are excluded there.
func (x *Pipeline) conditionIdents(matrixed bool) map[string]bool {
	idents := map[string]bool{
		"event_tag":    true,
		"event_ref":    true,
		"event_sha":    true,
		"event_repo":   true,
		"event_owner":  true,
		"event_sender": true,
	}
	if matrixed {
		for key := range x.Matrix {
			idents["matrix_"+key] = true
		}
	}
	return idents
}

func validateCondition(cond string, idents map[string]bool) error {
	if cond == "" {
		return nil
	}

	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return goerr.Wrap(err, "cannot parse condition")
	}
	for _, v := range expr.Vars() {
		if !idents[v] {
			return goerr.New("condition references unknown identifier", goerr.V("identifier", v))
		}
	}
	return nil
}

// EvalCondition evaluates a step condition against identifier values. An
// empty condition is always true, and a non-boolean result is an error.
func EvalCondition(cond string, params map[string]any) (bool, error) {
	if cond == "" {
		return true, nil
	}

	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return false, goerr.Wrap(err, "cannot parse condition", goerr.V("condition", cond))
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate condition", goerr.V("condition", cond))
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, goerr.New("condition did not evaluate to a boolean",
			goerr.V("condition", cond), goerr.V("result", result))
	}
	return ok, nil
}
