package gbt

import (
	"sort"
	"sync"
)

// Tree is a regression tree stored as a flat node slice; the root is Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either a split (x[Feature] < Threshold goes Left) or a leaf (Left == -1).
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`   // leaf weight, shrinkage applied
	Cover     float64 `json:"cover"`   // hessian sum of the training rows reaching the node
	Samples   int     `json:"samples"` // training rows reaching the node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Predict returns the leaf value reached by x.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.IsLeaf() {
			return node.Value
		}
		i = node.next(x)
	}
}

// Depth returns the maximum depth of the tree (a single leaf has depth 0).
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		node := &t.Nodes[i]
		if node.IsLeaf() {
			return 0
		}
		l, r := walk(node.Left), walk(node.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

func (n *Node) next(x []float64) int {
	if x[n.Feature] < n.Threshold {
		return n.Left
	}
	return n.Right
}

// split is the best split found for a single feature.
type split struct {
	gain      float64
	feature   int
	threshold float64
	leftIdx   []int
	rightIdx  []int
}

type treeBuilder struct {
	cols   [][]float64
	grad   []float64
	hess   []float64
	params Params
	nodes  []Node
}

func growTree(cols [][]float64, grad, hess []float64, params Params) *Tree {
	tb := &treeBuilder{cols: cols, grad: grad, hess: hess, params: params}
	idx := make([]int, len(grad))
	for i := range idx {
		idx[i] = i
	}
	tb.build(idx, 0)
	return &Tree{Nodes: tb.nodes}
}

// build appends the node for the rows in idx (and its subtree), returning its index.
func (tb *treeBuilder) build(idx []int, depth int) int {
	var g, h float64
	for _, i := range idx {
		g += tb.grad[i]
		h += tb.hess[i]
	}

	pos := len(tb.nodes)
	tb.nodes = append(tb.nodes, Node{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Value:   tb.params.LearningRate * leafWeight(g, h, tb.params.Lambda),
		Cover:   h,
		Samples: len(idx),
	})

	if tb.params.MaxDepth > 0 && depth >= tb.params.MaxDepth {
		return pos
	}
	if len(idx) < 2*tb.params.MinSamplesLeaf {
		return pos
	}

	best, ok := tb.bestSplit(idx, g, h)
	if !ok {
		return pos
	}

	tb.nodes[pos].Feature = best.feature
	tb.nodes[pos].Threshold = best.threshold
	tb.nodes[pos].Value = 0
	left := tb.build(best.leftIdx, depth+1)
	right := tb.build(best.rightIdx, depth+1)
	tb.nodes[pos].Left = left
	tb.nodes[pos].Right = right
	return pos
}

// bestSplit searches every feature in parallel and keeps the highest gain,
// preferring the lowest feature index on ties so trees are deterministic.
func (tb *treeBuilder) bestSplit(idx []int, g, h float64) (split, bool) {
	results := make([]split, len(tb.cols))
	var wg sync.WaitGroup
	for f := range tb.cols {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			results[f] = tb.bestSplitForFeature(idx, f, g, h)
		}(f)
	}
	wg.Wait()

	best := split{feature: -1}
	for _, res := range results {
		if res.feature >= 0 && res.gain > best.gain {
			best = res
		}
	}
	return best, best.feature >= 0
}

func (tb *treeBuilder) bestSplitForFeature(idx []int, f int, g, h float64) split {
	res := split{feature: -1}
	col := tb.cols[f]
	lambda := tb.params.Lambda
	minLeaf := tb.params.MinSamplesLeaf

	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.SliceStable(sorted, func(a, b int) bool { return col[sorted[a]] < col[sorted[b]] })

	parentScore := g * g / (h + lambda)
	var gl, hl float64
	for k := 0; k < len(sorted)-1; k++ {
		i := sorted[k]
		gl += tb.grad[i]
		hl += tb.hess[i]

		curr, next := col[i], col[sorted[k+1]]
		if curr == next {
			continue
		}
		nl := k + 1
		if nl < minLeaf || len(sorted)-nl < minLeaf {
			continue
		}
		gr, hr := g-gl, h-hl
		if hl < tb.params.MinChildWeight || hr < tb.params.MinChildWeight {
			continue
		}
		gain := 0.5*(gl*gl/(hl+lambda)+gr*gr/(hr+lambda)-parentScore) - tb.params.Gamma
		if gain > res.gain {
			res.gain = gain
			res.feature = f
			res.threshold = curr + (next-curr)/2
			res.leftIdx = nil // materialized below
			res.rightIdx = nil
		}
	}
	if res.feature < 0 {
		return res
	}

	for _, i := range idx {
		if col[i] < res.threshold {
			res.leftIdx = append(res.leftIdx, i)
		} else {
			res.rightIdx = append(res.rightIdx, i)
		}
	}
	return res
}

func leafWeight(g, h, lambda float64) float64 {
	return -g / (h + lambda)
}
