package models

// Plan is a parsed markdown implementation plan: frontmatter plus an
// ordered list of tasks extracted from its "## Tasks" section.
type Plan struct {
	FilePath     string // source file the plan was parsed from
	Title        string // first H1 heading in the document, if any
	TargetBranch string // frontmatter "target_branch", empty if absent
	BaseBranch   string // frontmatter "base_branch", empty if absent
	Tasks        []Task
}

// TaskByNumber returns the task with the given number, or false if absent.
func (p *Plan) TaskByNumber(number int) (Task, bool) {
	for _, t := range p.Tasks {
		if t.Number == number {
			return t, true
		}
	}
	return Task{}, false
}

// Validate checks every task and the plan as a whole: unique task numbers,
// dependencies that reference existing tasks, and no dependency cycles.
func (p *Plan) Validate() error {
	seen := make(map[int]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Number] {
			return duplicateTaskNumberError(t.Number)
		}
		seen[t.Number] = true
	}
	for _, t := range p.Tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return missingDependencyError(t.Number, dep)
			}
		}
	}
	if HasCyclicDependencies(p.Tasks) {
		return errCyclicDependencies
	}
	return nil
}
