package search

import (
	"github.com/poiesic/seeq/core"
)

// SearchMonitor observes the stages of a search. It is used by tooling
// that explains why a result was or was not returned.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	AfterIndexSearch(candidates []core.ScoredChunk)
	AfterLabelLookup(documentID core.ID, labels *core.Labels)
	Rejected(result *core.SearchResult, reason string)
	Finish(results []*core.SearchResult)
}

// Rejection reasons reported to SearchMonitor.Rejected.
const (
	RejectUnlabeled = "unlabeled"
	RejectCategory  = "category"
	RejectTags      = "tags"
)

type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                             {}
func (n *noopMonitor) AfterEmbedding(_ int)                       {}
func (n *noopMonitor) AfterIndexSearch(_ []core.ScoredChunk)      {}
func (n *noopMonitor) AfterLabelLookup(_ core.ID, _ *core.Labels) {}
func (n *noopMonitor) Rejected(_ *core.SearchResult, _ string)    {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)              {}
