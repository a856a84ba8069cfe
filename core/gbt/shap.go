package gbt

// TreeExplainer computes exact path-dependent SHAP values for a Booster
// (Lundberg et al., "Consistent Individualized Feature Attribution for Tree Ensembles").
// Node covers play the role of the background distribution, so
// sum(Explain(x)) + ExpectedValue() == Margin(x).
type TreeExplainer struct {
	booster  *Booster
	expected float64
}

// NewTreeExplainer binds an explainer to a fitted booster.
func NewTreeExplainer(b *Booster) (*TreeExplainer, error) {
	if !b.Fitted() {
		return nil, ErrNotFitted
	}
	expected := b.BaseMargin
	for _, t := range b.Trees {
		expected += t.expectedValue(0)
	}
	return &TreeExplainer{booster: b, expected: expected}, nil
}

// ExpectedValue is the baseline margin every explanation starts from.
func (e *TreeExplainer) ExpectedValue() float64 { return e.expected }

// Explain returns one attribution per feature of x, in margin (log-odds) units.
func (e *TreeExplainer) Explain(x []float64) []float64 {
	phi := make([]float64, e.booster.NumFeatures)
	for _, t := range e.booster.Trees {
		t.shap(x, phi)
	}
	return phi
}

func (t *Tree) expectedValue(i int) float64 {
	node := &t.Nodes[i]
	if node.IsLeaf() {
		return node.Value
	}
	l, r := &t.Nodes[node.Left], &t.Nodes[node.Right]
	return (l.Cover*t.expectedValue(node.Left) + r.Cover*t.expectedValue(node.Right)) / node.Cover
}

// pathElement tracks, for one feature on the current root-to-node path, the fraction of
// "zero" (feature absent) and "one" (feature present) paths flowing through, and the
// permutation weight.
type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

func (t *Tree) shap(x, phi []float64) {
	t.recurse(0, x, phi, nil, 1, 1, -1)
}

func (t *Tree) recurse(i int, x, phi []float64, parent []pathElement, zero, one float64, feature int) {
	path := make([]pathElement, len(parent), len(parent)+1)
	copy(path, parent)
	path = extendPath(path, zero, one, feature)

	node := &t.Nodes[i]
	if node.IsLeaf() {
		for k := 1; k < len(path); k++ {
			w := unwoundPathSum(path, k)
			el := path[k]
			phi[el.feature] += w * (el.one - el.zero) * node.Value
		}
		return
	}

	hot, cold := node.Right, node.Left
	if x[node.Feature] < node.Threshold {
		hot, cold = node.Left, node.Right
	}
	hotZero := t.Nodes[hot].Cover / node.Cover
	coldZero := t.Nodes[cold].Cover / node.Cover

	inZero, inOne := 1.0, 1.0
	for k := range path {
		if path[k].feature == node.Feature {
			inZero, inOne = path[k].zero, path[k].one
			path = unwindPath(path, k)
			break
		}
	}

	t.recurse(hot, x, phi, path, hotZero*inZero, inOne, node.Feature)
	t.recurse(cold, x, phi, path, coldZero*inZero, 0, node.Feature)
}

// extendPath grows the path by one feature, updating the permutation weights.
func extendPath(path []pathElement, zero, one float64, feature int) []pathElement {
	depth := len(path)
	el := pathElement{feature: feature, zero: zero, one: one}
	if depth == 0 {
		el.weight = 1
	}
	path = append(path, el)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(depth+1)
		path[i].weight = zero * path[i].weight * float64(depth-i) / float64(depth+1)
	}
	return path
}

// unwindPath undoes extendPath for the element at k, returning a path one element shorter.
func unwindPath(path []pathElement, k int) []pathElement {
	depth := len(path) - 1
	one, zero := path[k].one, path[k].zero
	out := make([]pathElement, len(path))
	copy(out, path)

	next := out[depth].weight
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := out[i].weight
			out[i].weight = next * float64(depth+1) / (float64(i+1) * one)
			next = tmp - out[i].weight*zero*float64(depth-i)/float64(depth+1)
		} else {
			out[i].weight = out[i].weight * float64(depth+1) / (zero * float64(depth-i))
		}
	}
	for i := k; i < depth; i++ {
		out[i].feature = out[i+1].feature
		out[i].zero = out[i+1].zero
		out[i].one = out[i+1].one
	}
	return out[:depth]
}

// unwoundPathSum is the total permutation weight of the path with element k removed.
func unwoundPathSum(path []pathElement, k int) float64 {
	depth := len(path) - 1
	one, zero := path[k].one, path[k].zero
	next := path[depth].weight
	var total float64
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := next * float64(depth+1) / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)/float64(depth+1)
		} else if zero != 0 {
			total += path[i].weight / zero / (float64(depth-i) / float64(depth+1))
		}
	}
	return total
}
