/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// FormulaHelp is a help message used by flags in main
const FormulaHelp = `When composing the convergence formula, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  offset (list of last synchronized errors to the master, in ns, newest first)
  delay (list of last filtered delay estimates, in ns, newest first)
  freq (list of last normalized frequency offsets, in ppb, newest first)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values, number) - mean of the first 'number' values of a list
  variance(values, number) - variance of the first 'number' values of a list
  stddev(values, number) - standard deviation of the first 'number' values of a list`

// DefaultConvergence scores a run by the magnitude and spread of the
// remaining synchronized error, in ns
const DefaultConvergence = "abs(mean(offset, 100)) + 1.0 * stddev(offset, 100)"

// Formula is a convergence score expression in two forms: string and parsed
type Formula struct {
	Expr string

	parsed *govaluate.EvaluableExpression
}

// Prepare parses the expression and checks its variables
func (f *Formula) Prepare() error {
	var err error
	f.parsed, err = prepareExpression(f.Expr)
	if err != nil {
		return fmt.Errorf("evaluating convergence formula: %w", err)
	}
	return nil
}

// Eval computes the score over the recorded series
func (f *Formula) Eval(params map[string][]float64) (float64, error) {
	result, err := f.parsed.Evaluate(mapOfInterface(params))
	if err != nil {
		return 0, err
	}
	v, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("expression produced %T, want float64", result)
	}
	return v, nil
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

var supportedVariables = []string{
	"offset",
	"delay",
	"freq",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val := args[0].(float64)
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("mean: wrong number of arguments: want 2, got %d", len(args))
		}
		vals := args[0].([]float64)
		nSamples := int(args[1].(float64))
		if len(vals) < nSamples {
			return mean(vals), nil
		}
		return mean(vals[:nSamples]), nil
	},
	"variance": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("variance: wrong number of arguments: want 2, got %d", len(args))
		}
		vals := args[0].([]float64)
		nSamples := int(args[1].(float64))
		if len(vals) < nSamples {
			return variance(vals), nil
		}
		return variance(vals[:nSamples]), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("stddev: wrong number of arguments: want 2, got %d", len(args))
		}
		vals := args[0].([]float64)
		nSamples := int(args[1].(float64))
		if len(vals) < nSamples {
			return stddev(vals), nil
		}
		return stddev(vals[:nSamples]), nil
	},
}

func prepareExpression(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}

func mapOfInterface(m map[string][]float64) map[string]interface{} {
	mm := make(map[string]interface{}, len(m))
	for k, v := range m {
		mm[k] = v
	}
	return mm
}
