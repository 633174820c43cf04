package rag

import "github.com/poiesic/ragstore/core"

// QueryMonitor provides hooks to observe the query workflow.
// Implement this interface to track intermediate stages and results.
type QueryMonitor interface {
	Start(query string)
	AfterEmbedding(vector []float32)
	AfterRetrieval(hits []core.SearchHit)
	AfterContextAssembly(contextText string, includedHits int)
	AfterGeneration(answer string)
	Finish(result *core.QueryResult)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                      {}
func (n *noopMonitor) AfterEmbedding(_ []float32)          {}
func (n *noopMonitor) AfterRetrieval(_ []core.SearchHit)   {}
func (n *noopMonitor) AfterContextAssembly(_ string, _ int) {}
func (n *noopMonitor) AfterGeneration(_ string)            {}
func (n *noopMonitor) Finish(_ *core.QueryResult)          {}
