package search

import (
	"github.com/poiesic/voxbank/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterExtraction(record *core.FeatureRecord, embedding core.Embedding)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                          {}
func (n *noopMonitor) AfterExtraction(_ *core.FeatureRecord, _ core.Embedding) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                           {}
