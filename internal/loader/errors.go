package loader

import "fmt"

// PrerequisiteError reports a missing subtask root or manifest. The
// artifacts are produced by setup, so the fix is always the same.
type PrerequisiteError struct {
	Path string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("subtask root not found at %s (run 'subfarm setup' first)", e.Path)
}

// IntegrityError reports catalog/matrix drift within one group: matrix
// row i must name the same task as catalog entry i. The two artifacts
// are written together by setup and must never disagree.
type IntegrityError struct {
	Group       string
	Row         int
	CatalogName string
	MatrixName  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("group %s: matrix row %d names task %q but catalog entry %d is %q",
		e.Group, e.Row, e.MatrixName, e.Row, e.CatalogName)
}
