package compiler

import (
	"slices"
	"strings"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
	"github.com/finos/morphir-scala/internal/types"
)

// errName names the placeholder type produced by a resolution error. It is
// instantiated like a type parameter, so each use gets a fresh meta variable
// instead of cascading mismatches.
const errName = "?"

var errType types.Type = &types.Var{Name: errName}

// typeInfo is a resolved type declaration.
type typeInfo struct {
	name    mir.FQName
	kind    mir.TypeKind
	params  []string
	builtin bool
	decl    syntax.Decl
	alias   types.Type
	fields  []field
	cases   []caseInfo
	broken  bool
}

type field struct {
	name string
	typ  types.Type
}

type caseInfo struct {
	name      string
	fields    []field
	hasFields bool
}

func (ti *typeInfo) caseNamed(name string) (caseInfo, bool) {
	for _, c := range ti.cases {
		if c.name == name {
			return c, true
		}
	}
	return caseInfo{}, false
}

// valueSym is the generic signature of a top-level value or constructor.
type valueSym struct {
	name   mir.FQName
	params []string
	typ    types.Type
	ctor   bool
	owner  mir.FQName
	broken bool
}

// scope is the top-level naming environment of one module: its own
// declarations plus what its imports bring in.
type scope struct {
	module string
	entry  *moduleEntry
	types  map[string]mir.FQName
	values map[string]mir.FQName
}

// resolver resolves names and signatures on demand across all indexed
// modules. A signature declared in another module is always resolved in that
// module's own scope. Errors met while resolving foreign declarations are
// not reported; the declaration is marked broken instead, and the module
// that owns it reports them when it is checked.
type resolver struct {
	index     *Index
	scopes    map[string]*scope
	infos     map[mir.FQName]*typeInfo
	values    map[mir.FQName]*valueSym
	expanding map[mir.FQName]bool
}

func newResolver(ix *Index) *resolver {
	return &resolver{
		index:     ix,
		scopes:    make(map[string]*scope),
		infos:     make(map[mir.FQName]*typeInfo),
		values:    make(map[mir.FQName]*valueSym),
		expanding: make(map[mir.FQName]bool),
	}
}

func resolveErr(dst *diag.List, pos diag.Pos, code, format string, args ...any) {
	*dst = append(*dst, diag.New(diag.KindType, diag.PhaseResolve, code, pos, format, args...))
}

// homeScope builds the scope of the module being checked, reporting import
// errors into dst.
func (r *resolver) homeScope(entry *moduleEntry, dst *diag.List) *scope {
	sc := r.buildScope(entry, dst)
	r.scopes[entry.name] = sc
	return sc
}

// scopeOf returns the scope of any indexed module, building it silently.
func (r *resolver) scopeOf(module string) *scope {
	if sc, ok := r.scopes[module]; ok {
		return sc
	}
	var discard diag.List
	sc := r.buildScope(r.index.modules[module], &discard)
	r.scopes[module] = sc
	return sc
}

func (r *resolver) buildScope(entry *moduleEntry, dst *diag.List) *scope {
	sc := &scope{
		module: entry.name,
		entry:  entry,
		types:  make(map[string]mir.FQName),
		values: make(map[string]mir.FQName),
	}

	add := func(m map[string]mir.FQName, name string, fq mir.FQName, explicit bool, pos diag.Pos) {
		prev, ok := m[name]
		switch {
		case !ok:
			m[name] = fq
		case prev != fq && explicit:
			resolveErr(dst, pos, diag.CodeDuplicateName, "%s is imported from both %s and %s", name, prev.Module, fq.Module)
		}
	}

	for _, imp := range entry.file.Imports {
		if imp.Module == mir.SDKModule {
			for _, n := range imp.Names {
				_, isType := preludeTypes[n.Name]
				_, isValue := preludeValues[n.Name]
				if !isType && !isValue && n.Name != listName {
					resolveErr(dst, n.Pos, diag.CodeUnknownImport, "module %s does not declare %s", imp.Module, n.Name)
				}
			}
			continue
		}
		target, ok := r.index.modules[imp.Module]
		if !ok {
			resolveErr(dst, imp.Pos, diag.CodeUnknownModule, "unknown module %s", imp.Module)
			continue
		}
		if target == entry {
			continue
		}
		fq := func(name string) mir.FQName { return mir.FQName{Module: target.name, Name: name} }

		if imp.Wildcard {
			for _, d := range target.file.Decls {
				switch d := d.(type) {
				case *syntax.DefDecl, *syntax.ValDecl:
					add(sc.values, d.DeclName(), fq(d.DeclName()), false, imp.Pos)
				case *syntax.TypeAlias:
					add(sc.types, d.Name, fq(d.Name), false, imp.Pos)
				case *syntax.CaseClass:
					add(sc.types, d.Name, fq(d.Name), false, imp.Pos)
					add(sc.values, d.Name, fq(d.Name), false, imp.Pos)
				case *syntax.EnumDecl:
					add(sc.types, d.Name, fq(d.Name), false, imp.Pos)
					for _, c := range d.Cases {
						add(sc.values, c.Name, fq(c.Name), false, imp.Pos)
					}
				}
			}
			continue
		}

		for _, n := range imp.Names {
			found := false
			if d, ok := target.types[n.Name]; ok {
				found = true
				add(sc.types, n.Name, fq(n.Name), true, n.Pos)
				if enum, ok := d.(*syntax.EnumDecl); ok {
					for _, c := range enum.Cases {
						add(sc.values, c.Name, fq(c.Name), false, n.Pos)
					}
				}
			}
			_, isValue := target.values[n.Name]
			_, isCtor := target.ctors[n.Name]
			if isValue || isCtor {
				found = true
				add(sc.values, n.Name, fq(n.Name), true, n.Pos)
			}
			if !found {
				resolveErr(dst, n.Pos, diag.CodeUnknownImport, "module %s does not declare %s", imp.Module, n.Name)
			}
		}
	}
	return sc
}

// lookupType finds a type by its short name: the module's own types first,
// then imports, then the prelude.
func (r *resolver) lookupType(sc *scope, name string) (mir.FQName, bool) {
	if _, ok := sc.entry.types[name]; ok {
		return mir.FQName{Module: sc.module, Name: name}, true
	}
	if fq, ok := sc.types[name]; ok {
		return fq, true
	}
	if _, ok := preludeTypes[name]; ok {
		return sdkName(name), true
	}
	return mir.FQName{}, false
}

// lookupTypeName resolves a possibly module-qualified type name.
func (r *resolver) lookupTypeName(sc *scope, q *syntax.QualName) (mir.FQName, bool) {
	if len(q.Parts) == 1 {
		return r.lookupType(sc, q.Parts[0])
	}
	module, name := q.Qualifier(), q.Last()
	if module == mir.SDKModule {
		_, ok := preludeTypes[name]
		return sdkName(name), ok
	}
	entry, ok := r.index.modules[module]
	if !ok {
		return mir.FQName{}, false
	}
	_, ok = entry.types[name]
	return mir.FQName{Module: module, Name: name}, ok
}

// lookupValue finds a value or constructor by its short name.
func (r *resolver) lookupValue(sc *scope, name string) (mir.FQName, bool) {
	if _, ok := sc.entry.values[name]; ok {
		return mir.FQName{Module: sc.module, Name: name}, true
	}
	if _, ok := sc.entry.ctors[name]; ok {
		return mir.FQName{Module: sc.module, Name: name}, true
	}
	if fq, ok := sc.values[name]; ok {
		return fq, true
	}
	if _, ok := preludeValues[name]; ok {
		return sdkName(name), true
	}
	return mir.FQName{}, false
}

// moduleValue finds a value declared by the named module.
func (r *resolver) moduleValue(module, name string) (mir.FQName, bool) {
	fq := mir.FQName{Module: module, Name: name}
	if module == mir.SDKModule {
		_, ok := preludeValues[name]
		return fq, ok
	}
	entry, ok := r.index.modules[module]
	if !ok {
		return fq, false
	}
	_, isValue := entry.values[name]
	_, isCtor := entry.ctors[name]
	return fq, isValue || isCtor
}

func (r *resolver) isModule(name string) bool {
	return name == mir.SDKModule || r.index.Has(name)
}

func declParams(names []*syntax.Name) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.Name
	}
	return out
}

// typeInfo returns the resolved declaration of a named type. The head (kind
// and parameters) is cached before the body is resolved so recursive records
// and enums terminate.
func (r *resolver) typeInfo(fq mir.FQName) *typeInfo {
	if fq.Module == mir.SDKModule {
		return preludeTypes[fq.Name]
	}
	if ti, ok := r.infos[fq]; ok {
		return ti
	}

	decl := r.index.modules[fq.Module].types[fq.Name]
	ti := &typeInfo{name: fq, decl: decl}
	r.infos[fq] = ti

	var local diag.List
	sc := r.scopeOf(fq.Module)
	switch d := decl.(type) {
	case *syntax.TypeAlias:
		ti.kind = mir.TypeAlias
		ti.params = declParams(d.TypeParams)
		return ti
	case *syntax.CaseClass:
		ti.kind = mir.TypeRecord
		ti.params = declParams(d.TypeParams)
		ti.fields = r.fields(sc, ti.params, d.Fields, &local)
	case *syntax.EnumDecl:
		ti.kind = mir.TypeEnum
		ti.params = declParams(d.TypeParams)
		for _, c := range d.Cases {
			ti.cases = append(ti.cases, caseInfo{
				name:      c.Name,
				fields:    r.fields(sc, ti.params, c.Fields, &local),
				hasFields: c.HasFields,
			})
		}
	}
	ti.broken = len(local) > 0
	return ti
}

func (r *resolver) fields(sc *scope, params []string, ps []*syntax.Param, dst *diag.List) []field {
	if len(ps) == 0 {
		return nil
	}
	out := make([]field, len(ps))
	for i, p := range ps {
		out[i] = field{name: p.Name, typ: r.typeExpr(sc, params, p.Type, dst)}
	}
	return out
}

// aliasBody expands an alias declaration once and caches the result. A cycle
// yields the error type; cycles are reported separately by aliasCycles.
func (r *resolver) aliasBody(ti *typeInfo) types.Type {
	if ti.alias != nil {
		return ti.alias
	}
	if r.expanding[ti.name] {
		ti.broken = true
		return errType
	}
	r.expanding[ti.name] = true
	defer delete(r.expanding, ti.name)

	var local diag.List
	body := r.typeExpr(r.scopeOf(ti.name.Module), ti.params, ti.decl.(*syntax.TypeAlias).Type, &local)
	ti.alias = body
	if len(local) > 0 {
		ti.broken = true
	}
	return body
}

// typeExpr resolves a source type in the given scope. Names in params are the
// enclosing declaration's type parameters. Aliases are expanded.
func (r *resolver) typeExpr(sc *scope, params []string, te syntax.TypeExpr, dst *diag.List) types.Type {
	switch te := te.(type) {
	case *syntax.TypeName:
		args := make([]types.Type, len(te.Args))
		for i, a := range te.Args {
			args[i] = r.typeExpr(sc, params, a, dst)
		}
		if len(args) == 0 {
			args = nil
		}

		if len(te.Name.Parts) == 1 && slices.Contains(params, te.Name.Parts[0]) {
			if len(args) > 0 {
				resolveErr(dst, te.Pos, diag.CodeTypeArgCount, "type parameter %s does not take type arguments", te.Name)
				return errType
			}
			return &types.Var{Name: te.Name.Parts[0]}
		}

		fq, ok := r.lookupTypeName(sc, te.Name)
		if !ok {
			resolveErr(dst, te.Pos, diag.CodeUnknownType, "unknown type %s", te.Name)
			return errType
		}
		ti := r.typeInfo(fq)
		if len(args) != len(ti.params) {
			resolveErr(dst, te.Pos, diag.CodeTypeArgCount, "type %s expects %d type arguments, found %d", te.Name, len(ti.params), len(args))
			return errType
		}
		if fq == sdkName("Unit") {
			return types.UnitT
		}
		if ti.kind == mir.TypeAlias && !ti.builtin {
			body := r.aliasBody(ti)
			if ti.broken && fq.Module != sc.module {
				resolveErr(dst, te.Pos, diag.CodeUnknownType, "type %s could not be resolved", te.Name)
			}
			env := make(map[string]types.Type, len(args))
			for i, p := range ti.params {
				env[p] = args[i]
			}
			return types.Substitute(body, env)
		}
		if ti.broken && fq.Module != sc.module {
			resolveErr(dst, te.Pos, diag.CodeUnknownType, "type %s could not be resolved", te.Name)
		}
		return &types.Con{Name: fq, Args: args}

	case *syntax.TupleType:
		switch len(te.Elems) {
		case 0:
			return types.UnitT
		case 1:
			return r.typeExpr(sc, params, te.Elems[0], dst)
		}
		elems := make([]types.Type, len(te.Elems))
		for i, e := range te.Elems {
			elems[i] = r.typeExpr(sc, params, e, dst)
		}
		return &types.Tuple{Elems: elems}

	case *syntax.FuncType:
		ps := make([]types.Type, len(te.Params))
		for i, p := range te.Params {
			ps[i] = r.typeExpr(sc, params, p, dst)
		}
		return &types.Func{Params: ps, Result: r.typeExpr(sc, params, te.Result, dst)}
	}
	return errType
}

// value returns the signature of a value or constructor.
func (r *resolver) value(fq mir.FQName) *valueSym {
	if fq.Module == mir.SDKModule {
		return preludeValues[fq.Name]
	}
	if v, ok := r.values[fq]; ok {
		return v
	}

	entry := r.index.modules[fq.Module]
	sc := r.scopeOf(fq.Module)
	sym := &valueSym{name: fq}
	r.values[fq] = sym

	var local diag.List
	if d, ok := entry.values[fq.Name]; ok {
		switch d := d.(type) {
		case *syntax.DefDecl:
			sym.params = declParams(d.TypeParams)
			ps := make([]types.Type, len(d.Params))
			for i, p := range d.Params {
				ps[i] = r.typeExpr(sc, sym.params, p.Type, &local)
			}
			sym.typ = &types.Func{Params: ps, Result: r.typeExpr(sc, sym.params, d.Result, &local)}
		case *syntax.ValDecl:
			sym.typ = r.typeExpr(sc, nil, d.Type, &local)
		}
		sym.broken = len(local) > 0
		return sym
	}

	c := entry.ctors[fq.Name]
	owner := mir.FQName{Module: fq.Module, Name: c.owner.DeclName()}
	ti := r.typeInfo(owner)
	sym.ctor = true
	sym.owner = owner
	sym.params = ti.params
	sym.broken = ti.broken

	self := &types.Con{Name: owner}
	for _, p := range ti.params {
		self.Args = append(self.Args, &types.Var{Name: p})
	}
	var fields []field
	hasFields := true
	if c.enumCase != nil {
		ci, _ := ti.caseNamed(fq.Name)
		fields, hasFields = ci.fields, ci.hasFields
	} else {
		fields = ti.fields
	}
	if !hasFields {
		sym.typ = self
		return sym
	}
	ps := make([]types.Type, len(fields))
	for i, f := range fields {
		ps[i] = f.typ
	}
	sym.typ = &types.Func{Params: ps, Result: self}
	return sym
}

// splitQualified turns a dotted path into candidate (qualifier, name) pairs.
func splitQualified(parts []string) (string, string) {
	return strings.Join(parts[:len(parts)-1], "."), parts[len(parts)-1]
}
