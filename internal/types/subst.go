package types

import (
	"errors"
	"fmt"

	"github.com/finos/morphir-scala/internal/mir"
)

// ErrUnsolved is returned by ToMIR when a meta variable has no solution.
var ErrUnsolved = errors.New("type could not be inferred")

// MismatchError reports two types that do not unify.
type MismatchError struct {
	Want, Got Type
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected %s, found %s", Show(e.Want), Show(e.Got))
}

// InfiniteError reports a meta variable that would contain itself.
type InfiniteError struct {
	Meta *Meta
	In   Type
}

func (e *InfiniteError) Error() string {
	return fmt.Sprintf("cannot construct infinite type %s = %s", Show(e.Meta), Show(e.In))
}

// Subst records meta variable solutions. One Subst is used per declaration
// being checked and is not safe for concurrent use.
type Subst struct {
	bound []Type
}

// NewSubst creates an empty substitution.
func NewSubst() *Subst {
	return &Subst{}
}

// Fresh allocates an unsolved meta variable.
func (s *Subst) Fresh() *Meta {
	s.bound = append(s.bound, nil)
	return &Meta{ID: len(s.bound) - 1}
}

// Instantiate replaces the named type parameters in t by fresh metas.
func (s *Subst) Instantiate(params []string, t Type) Type {
	if len(params) == 0 {
		return t
	}
	env := make(map[string]Type, len(params))
	for _, p := range params {
		env[p] = s.Fresh()
	}
	return Substitute(t, env)
}

// Resolve follows solved metas at the top of t.
func (s *Subst) Resolve(t Type) Type {
	for {
		m, ok := t.(*Meta)
		if !ok || s.bound[m.ID] == nil {
			return t
		}
		t = s.bound[m.ID]
	}
}

// Apply resolves every solved meta inside t.
func (s *Subst) Apply(t Type) Type {
	t = s.Resolve(t)
	switch t := t.(type) {
	case *Con:
		if len(t.Args) == 0 {
			return t
		}
		return &Con{Name: t.Name, Args: s.applyAll(t.Args)}
	case *Func:
		return &Func{Params: s.applyAll(t.Params), Result: s.Apply(t.Result)}
	case *Tuple:
		return &Tuple{Elems: s.applyAll(t.Elems)}
	}
	return t
}

func (s *Subst) applyAll(ts []Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = s.Apply(t)
	}
	return out
}

// Unify makes want and got equal, solving metas as needed.
func (s *Subst) Unify(want, got Type) error {
	if err := s.unify(want, got); err != nil {
		var mm *MismatchError
		if errors.As(err, &mm) {
			return &MismatchError{Want: s.Apply(want), Got: s.Apply(got)}
		}
		return err
	}
	return nil
}

func (s *Subst) unify(a, b Type) error {
	a, b = s.Resolve(a), s.Resolve(b)

	if ma, ok := a.(*Meta); ok {
		return s.bind(ma, b)
	}
	if mb, ok := b.(*Meta); ok {
		return s.bind(mb, a)
	}

	switch a := a.(type) {
	case *Con:
		bc, ok := b.(*Con)
		if !ok || a.Name != bc.Name || len(a.Args) != len(bc.Args) {
			return &MismatchError{Want: a, Got: b}
		}
		return s.unifyAll(a.Args, bc.Args)
	case *Var:
		if bv, ok := b.(*Var); ok && a.Name == bv.Name {
			return nil
		}
	case *Func:
		bf, ok := b.(*Func)
		if !ok || len(a.Params) != len(bf.Params) {
			return &MismatchError{Want: a, Got: b}
		}
		if err := s.unifyAll(a.Params, bf.Params); err != nil {
			return err
		}
		return s.unify(a.Result, bf.Result)
	case *Tuple:
		bt, ok := b.(*Tuple)
		if !ok || len(a.Elems) != len(bt.Elems) {
			return &MismatchError{Want: a, Got: b}
		}
		return s.unifyAll(a.Elems, bt.Elems)
	case *Unit:
		if _, ok := b.(*Unit); ok {
			return nil
		}
	}
	return &MismatchError{Want: a, Got: b}
}

func (s *Subst) unifyAll(as, bs []Type) error {
	for i := range as {
		if err := s.unify(as[i], bs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subst) bind(m *Meta, t Type) error {
	if tm, ok := t.(*Meta); ok && tm.ID == m.ID {
		return nil
	}
	if s.occurs(m.ID, t) {
		return &InfiniteError{Meta: m, In: s.Apply(t)}
	}
	s.bound[m.ID] = t
	return nil
}

func (s *Subst) occurs(id int, t Type) bool {
	t = s.Resolve(t)
	switch t := t.(type) {
	case *Meta:
		return t.ID == id
	case *Con:
		for _, a := range t.Args {
			if s.occurs(id, a) {
				return true
			}
		}
	case *Func:
		for _, p := range t.Params {
			if s.occurs(id, p) {
				return true
			}
		}
		return s.occurs(id, t.Result)
	case *Tuple:
		for _, e := range t.Elems {
			if s.occurs(id, e) {
				return true
			}
		}
	}
	return false
}

// ToMIR converts t to a solved mir type. It fails with ErrUnsolved when a
// meta variable inside t has no solution.
func (s *Subst) ToMIR(t Type) (mir.Type, error) {
	t = s.Resolve(t)
	switch t := t.(type) {
	case *Con:
		args, err := s.toMIRAll(t.Args)
		if err != nil {
			return nil, err
		}
		return &mir.TRef{Name: t.Name, Args: args}, nil
	case *Var:
		return &mir.TVar{Name: t.Name}, nil
	case *Func:
		params, err := s.toMIRAll(t.Params)
		if err != nil {
			return nil, err
		}
		res, err := s.ToMIR(t.Result)
		if err != nil {
			return nil, err
		}
		return &mir.TFunc{Params: params, Result: res}, nil
	case *Tuple:
		elems, err := s.toMIRAll(t.Elems)
		if err != nil {
			return nil, err
		}
		return &mir.TTuple{Elems: elems}, nil
	case *Unit:
		return &mir.TUnit{}, nil
	case *Meta:
		return nil, ErrUnsolved
	}
	return nil, fmt.Errorf("unknown type %T", t)
}

func (s *Subst) toMIRAll(ts []Type) ([]mir.Type, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	out := make([]mir.Type, len(ts))
	for i, t := range ts {
		mt, err := s.ToMIR(t)
		if err != nil {
			return nil, err
		}
		out[i] = mt
	}
	return out, nil
}
