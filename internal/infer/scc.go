package infer

// tarjanState carries Tarjan's algorithm's working sets.
type tarjanState struct {
	cg       *CallGraph
	index    map[int]int
	lowlink  map[int]int
	onStack  map[int]bool
	stack    []int
	counter  int
	sccs     [][]int
}

// DetectSCCs runs Tarjan's algorithm over the call graph, returning strongly
// connected components in reverse topological order (leaves first), per
// spec.md §4.3.
func DetectSCCs(cg *CallGraph) [][]int {
	st := &tarjanState{
		cg:      cg,
		index:   map[int]int{},
		lowlink: map[int]int{},
		onStack: map[int]bool{},
	}
	// Iterate nodes in a deterministic order (function index) so results are
	// reproducible run to run.
	var nodes []int
	for n := range cg.Edges {
		nodes = append(nodes, n)
	}
	sortInts(nodes)
	for _, n := range nodes {
		if _, visited := st.index[n]; !visited {
			st.strongConnect(n)
		}
	}
	// Tarjan pops an SCC only after every SCC it calls into has been popped,
	// so the collection order is already reverse topological (leaves first).
	return st.sccs
}

func (st *tarjanState) strongConnect(v int) {
	st.index[v] = st.counter
	st.lowlink[v] = st.counter
	st.counter++
	st.stack = append(st.stack, v)
	st.onStack[v] = true

	var callees []int
	for c := range st.cg.Edges[v] {
		callees = append(callees, c)
	}
	sortInts(callees)

	for _, w := range callees {
		if _, visited := st.index[w]; !visited {
			st.strongConnect(w)
			if st.lowlink[w] < st.lowlink[v] {
				st.lowlink[v] = st.lowlink[w]
			}
		} else if st.onStack[w] {
			if st.index[w] < st.lowlink[v] {
				st.lowlink[v] = st.index[w]
			}
		}
	}

	if st.lowlink[v] == st.index[v] {
		var scc []int
		for {
			n := len(st.stack) - 1
			w := st.stack[n]
			st.stack = st.stack[:n]
			st.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		st.sccs = append(st.sccs, scc)
	}
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// IsRecursiveSCC reports whether scc has >= 2 members, or one member with a
// self-edge, per spec.md §4.3.
func IsRecursiveSCC(scc []int, cg *CallGraph) bool {
	if len(scc) >= 2 {
		return true
	}
	if len(scc) == 1 {
		return cg.Edges[scc[0]][scc[0]]
	}
	return false
}
