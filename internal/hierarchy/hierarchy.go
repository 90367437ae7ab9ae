// Package hierarchy implements the Hierarchy Reconstruction Engine (spec
// §4.F): Phase 1 builds the global instruction index from every
// skeleton's child-task prefixes; Phase 2 resolves each skeleton's
// parent by exact-prefix lookup against that index. Strict mode (the
// only mode) never falls back to fuzzy matching.
package hierarchy

import (
	"github.com/jra3/taskgraph/internal/childindex"
	"github.com/jra3/taskgraph/internal/skeleton"
)

// ResolutionMethod names how (or whether) a skeleton's parent was
// resolved, for the Phase 2 metrics histogram (spec §4.F).
type ResolutionMethod string

const (
	MethodRadixTreeExact ResolutionMethod = "radix_tree_exact"
	MethodRootDetected   ResolutionMethod = "root_detected"
)

// Phase1Metrics summarizes one Phase 1 run.
type Phase1Metrics struct {
	Processed  int
	Parsed     int
	Prefixes   int
	IndexSize  int
	Errors     []string
}

// Phase1 inserts every skeleton's child-task instruction prefixes into
// idx, mapped to the owning task id, and marks Phase1Completed.
func Phase1(skeletons []*skeleton.Skeleton, idx *childindex.Index) Phase1Metrics {
	m := Phase1Metrics{}
	for _, sk := range skeletons {
		m.Processed++
		if sk == nil {
			m.Errors = append(m.Errors, "nil skeleton")
			continue
		}
		m.Parsed++
		for _, prefix := range sk.ChildTaskInstructionPrefixes {
			idx.Insert(prefix, sk.TaskID)
			m.Prefixes++
		}
		sk.ProcessingState.Phase1Completed = true
	}
	m.IndexSize = idx.Size()
	return m
}

// Phase2Metrics summarizes one Phase 2 run.
type Phase2Metrics struct {
	Processed          int
	Resolved           int
	Unresolved         int
	AverageConfidence  float64
	ResolutionMethods  map[ResolutionMethod]int
}

// Phase2 resolves reconstructedParentId for every skeleton by exact
// lookup against idx. byID must contain every skeleton passed in (and,
// for cycle detection, every skeleton currently in the cache) keyed by
// TaskID.
func Phase2(skeletons []*skeleton.Skeleton, idx *childindex.Index, byID map[string]*skeleton.Skeleton) Phase2Metrics {
	m := Phase2Metrics{ResolutionMethods: make(map[ResolutionMethod]int)}
	var confidenceSum float64

	for _, sk := range skeletons {
		m.Processed++
		// Invariant (spec §3): phase2Completed implies phase1Completed.
		sk.ProcessingState.Phase1Completed = true

		if sk.TruncatedInstruction == "" {
			sk.ReconstructedParentID = ""
			m.ResolutionMethods[MethodRootDetected]++
			sk.ProcessingState.Phase2Completed = true
			continue
		}

		candidate := normalizeCandidate(sk.TruncatedInstruction)

		if idx.Ambiguous(candidate) {
			sk.ProcessingState.Errors = append(sk.ProcessingState.Errors, "ambiguous_parent")
			sk.ReconstructedParentID = ""
			m.Unresolved++
			sk.ProcessingState.Phase2Completed = true
			continue
		}

		parentID, ok := idx.LookupExact(candidate)
		if !ok {
			m.ResolutionMethods[MethodRootDetected]++
			m.Unresolved++
			sk.ProcessingState.Phase2Completed = true
			continue
		}

		if parentID == sk.TaskID || createsCycle(sk.TaskID, parentID, byID) {
			sk.ProcessingState.Errors = append(sk.ProcessingState.Errors, "cycle_detected")
			sk.ReconstructedParentID = ""
			m.Unresolved++
			sk.ProcessingState.Phase2Completed = true
			continue
		}

		sk.ReconstructedParentID = parentID
		m.Resolved++
		confidenceSum += 1.0
		m.ResolutionMethods[MethodRadixTreeExact]++
		sk.ProcessingState.Phase2Completed = true
	}

	if m.Processed > 0 {
		m.AverageConfidence = confidenceSum / float64(m.Processed)
	}
	return m
}

// normalizeCandidate applies the identical normalization the indexer
// applies to child-task prefixes (spec §4.F: "Normalize the candidate
// identically to D"), so lookups compare like with like.
func normalizeCandidate(s string) string {
	return childindex.Normalize(s)
}

// createsCycle walks ancestors starting at parentID; if it ever reaches
// taskID, linking taskID -> parentID would create a cycle.
func createsCycle(taskID, parentID string, byID map[string]*skeleton.Skeleton) bool {
	visited := make(map[string]struct{})
	current := parentID
	for current != "" {
		if current == taskID {
			return true
		}
		if _, seen := visited[current]; seen {
			return true // pre-existing cycle elsewhere; refuse to extend it
		}
		visited[current] = struct{}{}

		next, ok := byID[current]
		if !ok {
			return false
		}
		current = next.ReconstructedParentID
	}
	return false
}
