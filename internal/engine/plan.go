package engine

import "github.com/jaa/vasort/internal/library"

// PlanItem pairs a library item with its absolute position in the scan
// order. Index refers to the full item list, not the plan slice; checkpoint
// arithmetic works on these absolute positions.
type PlanItem struct {
	Index int
	Item  library.Item
}

// Plan determines what a run still has to do. Everything before resumeIndex
// counts as handled. Items at or past it are filtered against the done set,
// which can run ahead of the checkpoint after an interrupted batch; those
// extra hits fold into the already-done count.
func Plan(items []library.Item, resumeIndex int, done map[string]struct{}) ([]PlanItem, int) {
	if resumeIndex < 0 {
		resumeIndex = 0
	}
	if resumeIndex > len(items) {
		resumeIndex = len(items)
	}

	alreadyDone := resumeIndex
	todo := make([]PlanItem, 0, len(items)-resumeIndex)
	for i := resumeIndex; i < len(items); i++ {
		if _, ok := done[items[i].ID]; ok {
			alreadyDone++
			continue
		}
		todo = append(todo, PlanItem{Index: i, Item: items[i]})
	}
	return todo, alreadyDone
}
