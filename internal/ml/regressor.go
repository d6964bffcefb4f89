package ml

import (
	"fmt"
	"math"
)

// LinearRegressor computes intercept + Σ coef[i]*x[i].
type LinearRegressor struct {
	intercept    float64
	coefficients []float64
}

func NewLinearRegressor(intercept float64, coefficients []float64) (*LinearRegressor, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("linear regressor has no coefficients")
	}
	if !isFinite(intercept) {
		return nil, fmt.Errorf("linear regressor intercept is not finite")
	}
	for i, c := range coefficients {
		if !isFinite(c) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	coef := make([]float64, len(coefficients))
	copy(coef, coefficients)
	return &LinearRegressor{intercept: intercept, coefficients: coef}, nil
}

func (r *LinearRegressor) NumFeatures() int { return len(r.coefficients) }

func (r *LinearRegressor) Predict(x []float64) (float64, error) {
	if len(x) != len(r.coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(r.coefficients), len(x))
	}
	y := r.intercept
	for i, c := range r.coefficients {
		y += c * x[i]
	}
	return y, nil
}

// Confidence is always 1: a single linear model has no spread to measure.
func (r *LinearRegressor) Confidence(x []float64) (float64, error) {
	if len(x) != len(r.coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(r.coefficients), len(x))
	}
	return 1, nil
}

// Aggregation selects how tree outputs are combined.
type Aggregation string

const (
	// AggregateSum is gradient boosting: base_score + Σ tree outputs.
	AggregateSum Aggregation = "sum"
	// AggregateMean is a random forest: the mean of tree outputs.
	AggregateMean Aggregation = "mean"
)

// TreeNode is one node of a flattened decision tree. A node with Leaf set is
// terminal. Otherwise x[Feature] < Threshold goes to Yes, else No; NaN goes to
// Missing, which defaults to Yes.
type TreeNode struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Yes       int      `json:"yes"`
	No        int      `json:"no"`
	Missing   *int     `json:"missing,omitempty"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

// Tree is a flattened decision tree rooted at node 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeEnsemble evaluates a boosted or bagged set of regression trees.
type TreeEnsemble struct {
	aggregation Aggregation
	baseScore   float64
	numFeatures int
	trees       []Tree
}

// NewTreeEnsemble validates the node graphs. Child indices must point forward
// so evaluation always terminates.
func NewTreeEnsemble(aggregation Aggregation, baseScore float64, numFeatures int, trees []Tree) (*TreeEnsemble, error) {
	if aggregation != AggregateSum && aggregation != AggregateMean {
		return nil, fmt.Errorf("unknown aggregation %q", aggregation)
	}
	if numFeatures <= 0 {
		return nil, fmt.Errorf("tree ensemble needs a positive feature count")
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("tree ensemble has no trees")
	}
	if !isFinite(baseScore) {
		return nil, fmt.Errorf("base score is not finite")
	}
	for ti, tree := range trees {
		if err := validateTree(tree, numFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
	}
	return &TreeEnsemble{
		aggregation: aggregation,
		baseScore:   baseScore,
		numFeatures: numFeatures,
		trees:       trees,
	}, nil
}

func validateTree(tree Tree, numFeatures int) error {
	n := len(tree.Nodes)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, node := range tree.Nodes {
		if node.Leaf != nil {
			if !isFinite(*node.Leaf) {
				return fmt.Errorf("node %d: leaf value is not finite", i)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.Feature)
		}
		if math.IsNaN(node.Threshold) {
			return fmt.Errorf("node %d: threshold is NaN", i)
		}
		children := []int{node.Yes, node.No}
		if node.Missing != nil {
			children = append(children, *node.Missing)
		}
		for _, c := range children {
			if c <= i || c >= n {
				return fmt.Errorf("node %d: child %d must point forward within the tree", i, c)
			}
		}
	}
	return nil
}

func (t *TreeEnsemble) NumFeatures() int { return t.numFeatures }

// Aggregation reports how tree outputs are combined.
func (t *TreeEnsemble) Aggregation() Aggregation { return t.aggregation }

func (t *TreeEnsemble) Predict(x []float64) (float64, error) {
	outputs, err := t.treeOutputs(x)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, o := range outputs {
		sum += o
	}
	if t.aggregation == AggregateMean {
		return sum / float64(len(outputs)), nil
	}
	return t.baseScore + sum, nil
}

// Confidence for a bagged ensemble is 1 - std of the per-tree outputs,
// clamped to [0, 1]. Boosted trees are additive corrections, not independent
// estimates, so their spread says nothing and they report 1.
func (t *TreeEnsemble) Confidence(x []float64) (float64, error) {
	if len(x) != t.numFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", t.numFeatures, len(x))
	}
	if t.aggregation != AggregateMean {
		return 1, nil
	}
	outputs, err := t.treeOutputs(x)
	if err != nil {
		return 0, err
	}
	return ConfidenceFromStdDev(stdDev(outputs)), nil
}

func (t *TreeEnsemble) treeOutputs(x []float64) ([]float64, error) {
	if len(x) != t.numFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", t.numFeatures, len(x))
	}
	outputs := make([]float64, len(t.trees))
	for i := range t.trees {
		outputs[i] = evalTree(&t.trees[i], x)
	}
	return outputs, nil
}

func evalTree(tree *Tree, x []float64) float64 {
	i := 0
	for {
		node := &tree.Nodes[i]
		if node.Leaf != nil {
			return *node.Leaf
		}
		v := x[node.Feature]
		switch {
		case math.IsNaN(v):
			if node.Missing != nil {
				i = *node.Missing
			} else {
				i = node.Yes
			}
		case v < node.Threshold:
			i = node.Yes
		default:
			i = node.No
		}
	}
}
