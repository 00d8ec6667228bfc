package gradebook

// Grader is one weighted assignment category of a course grading policy.
type Grader struct {
	Type       string  `json:"type" yaml:"type"`
	ShortLabel string  `json:"short_label,omitempty" yaml:"short_label,omitempty"`
	MinCount   int     `json:"min_count" yaml:"min_count"`
	DropCount  int     `json:"drop_count" yaml:"drop_count"`
	Weight     float64 `json:"weight" yaml:"weight"`
}

type GradingPolicy struct {
	Graders      []Grader           `json:"GRADER" yaml:"GRADER"`
	GradeCutoffs map[string]float64 `json:"GRADE_CUTOFFS" yaml:"GRADE_CUTOFFS"`
}

// TotalWeight sums grader weights. Well formed policies total 1.
func (p GradingPolicy) TotalWeight() float64 {
	var total float64
	for _, g := range p.Graders {
		total += g.Weight
	}
	return total
}
