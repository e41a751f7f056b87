/*
Copyright © 2018 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package binning

import "fmt"

// VariableContext resolves the names of the variables that make up an
// Observation's sample vector.
type VariableContext interface {
	// VariableCount returns the number of variables in each Observation.
	VariableCount() int
	// VariableName returns the name of variable i.
	VariableName(i int) string
	// VariableIndex returns the index of the named variable, or -1.
	VariableIndex(name string) int
	// VariableExpr returns the expression that computes variable i, or
	// "" if it is read directly from a band of the same name.
	VariableExpr(i int) string
	// ValidMaskExpr returns the expression that selects valid pixels, or
	// "" if every pixel is valid.
	ValidMaskExpr() string
}

// Variable is a named sample value, optionally computed from an expression.
type Variable struct {
	Name string
	Expr string
}

// VariableSet is a VariableContext made from a fixed list of variables.
type VariableSet struct {
	vars     []Variable
	index    map[string]int
	maskExpr string
}

// NewVariableSet creates a VariableSet. Variable names must be unique
// and non-empty.
func NewVariableSet(maskExpr string, vars ...Variable) (*VariableSet, error) {
	s := &VariableSet{
		vars:     vars,
		index:    make(map[string]int),
		maskExpr: maskExpr,
	}
	for i, v := range vars {
		if v.Name == "" {
			return nil, fmt.Errorf("binning: variable %d has no name", i)
		}
		if _, ok := s.index[v.Name]; ok {
			return nil, fmt.Errorf("binning: duplicate variable %q", v.Name)
		}
		s.index[v.Name] = i
	}
	return s, nil
}

// VariableCount implements VariableContext.
func (s *VariableSet) VariableCount() int { return len(s.vars) }

// VariableName implements VariableContext.
func (s *VariableSet) VariableName(i int) string { return s.vars[i].Name }

// VariableIndex implements VariableContext.
func (s *VariableSet) VariableIndex(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// VariableExpr implements VariableContext.
func (s *VariableSet) VariableExpr(i int) string { return s.vars[i].Expr }

// ValidMaskExpr implements VariableContext.
func (s *VariableSet) ValidMaskExpr() string { return s.maskExpr }

// ResolveVariable returns the index of name in ctx, or an error if the
// variable is not configured.
func ResolveVariable(ctx VariableContext, name string) (int, error) {
	i := ctx.VariableIndex(name)
	if i < 0 {
		return -1, fmt.Errorf("binning: unknown variable %q", name)
	}
	return i, nil
}
