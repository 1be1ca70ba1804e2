package compiler

import (
	"cmp"
	"slices"
	"strings"

	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
)

// aliasGraph maps a type alias to the aliases its body mentions directly.
type aliasGraph map[mir.FQName][]mir.FQName

// aliasCycles reports every alias declared by the home module that takes part
// in a cycle, mapped to a readable cycle path.
//
// The graph is built from the home module's aliases and follows references
// into other modules, so a cycle that crosses module boundaries is still
// found. Strongly connected components are computed with Tarjan's algorithm;
// components of size one only count when the alias mentions itself.
func (r *resolver) aliasCycles(home string) map[string]string {
	graph := r.aliasGraph(home)
	out := make(map[string]string)
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		path := reconstructCyclePath(scc, graph)
		names := make([]string, len(path))
		for i, n := range path {
			names[i] = n.Name
			if n.Module != home {
				names[i] = n.Module + "." + n.Name
			}
		}
		msg := strings.Join(names, " -> ")
		for _, n := range scc {
			if n.Module == home {
				out[n.Name] = msg
			}
		}
	}
	return out
}

func (r *resolver) aliasGraph(home string) aliasGraph {
	graph := make(aliasGraph)
	var visit func(fq mir.FQName)
	visit = func(fq mir.FQName) {
		if _, seen := graph[fq]; seen {
			return
		}
		entry := r.index.modules[fq.Module]
		alias, ok := entry.types[fq.Name].(*syntax.TypeAlias)
		if !ok {
			return
		}
		sc := r.scopeOf(fq.Module)
		params := declParams(alias.TypeParams)
		edges := []mir.FQName{}
		walkTypeNames(alias.Type, func(q *syntax.QualName) {
			if len(q.Parts) == 1 && slices.Contains(params, q.Parts[0]) {
				return
			}
			ref, ok := r.lookupTypeName(sc, q)
			if !ok || ref.Module == mir.SDKModule {
				return
			}
			if _, isAlias := r.index.modules[ref.Module].types[ref.Name].(*syntax.TypeAlias); isAlias && !slices.Contains(edges, ref) {
				edges = append(edges, ref)
			}
		})
		graph[fq] = edges
		for _, e := range edges {
			visit(e)
		}
	}

	entry := r.index.modules[home]
	for _, d := range entry.file.Decls {
		if a, ok := d.(*syntax.TypeAlias); ok {
			visit(mir.FQName{Module: home, Name: a.Name})
		}
	}
	return graph
}

func walkTypeNames(te syntax.TypeExpr, fn func(*syntax.QualName)) {
	switch te := te.(type) {
	case *syntax.TypeName:
		fn(te.Name)
		for _, a := range te.Args {
			walkTypeNames(a, fn)
		}
	case *syntax.TupleType:
		for _, e := range te.Elems {
			walkTypeNames(e, fn)
		}
	case *syntax.FuncType:
		for _, p := range te.Params {
			walkTypeNames(p, fn)
		}
		walkTypeNames(te.Result, fn)
	}
}

func hasSelfLoop(node mir.FQName, graph aliasGraph) bool {
	return slices.Contains(graph[node], node)
}

func compareFQ(a, b mir.FQName) int {
	if c := cmp.Compare(a.Module, b.Module); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// tarjanSCC finds strongly connected components. Nodes are visited in sorted
// order so the result does not depend on map iteration.
func tarjanSCC(graph aliasGraph) [][]mir.FQName {
	var (
		index   = 0
		stack   []mir.FQName
		indices = make(map[mir.FQName]int)
		lowlink = make(map[mir.FQName]int)
		onStack = make(map[mir.FQName]bool)
		sccs    [][]mir.FQName
	)

	var strongConnect func(mir.FQName)
	strongConnect = func(v mir.FQName) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []mir.FQName
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.SortFunc(scc, compareFQ)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]mir.FQName, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, compareFQ)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the component from its first
// member until it returns to the start.
func reconstructCyclePath(scc []mir.FQName, graph aliasGraph) []mir.FQName {
	start := scc[0]
	path := []mir.FQName{start}
	visited := map[mir.FQName]bool{}
	current := start
	for {
		visited[current] = true
		next, found := mir.FQName{}, false
		for _, n := range graph[current] {
			if slices.Contains(scc, n) && (!visited[n] || n == start) {
				next, found = n, true
				break
			}
		}
		if !found {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
