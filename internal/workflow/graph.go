package workflow

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoAnnotationStage indicates a workflow without a single annotation
// stage, which makes veto routing impossible.
var ErrNoAnnotationStage = errors.New("workflow has no annotation stage")

// Graph answers read-only routing queries over one workflow's stages and
// connections. All data is loaded up front; no query touches storage.
type Graph struct {
	stages   map[int64]*WorkflowStage
	ordered  []*WorkflowStage
	outgoing map[int64][]*StageConnection
	incoming map[int64][]*StageConnection
}

// NewGraph builds a Graph from already-loaded stages and connections.
// Connections referencing unknown stages are dropped.
func NewGraph(stages []*WorkflowStage, connections []*StageConnection) *Graph {
	g := &Graph{
		stages:   make(map[int64]*WorkflowStage, len(stages)),
		ordered:  make([]*WorkflowStage, 0, len(stages)),
		outgoing: make(map[int64][]*StageConnection),
		incoming: make(map[int64][]*StageConnection),
	}
	for _, stage := range stages {
		if stage == nil {
			continue
		}
		g.stages[stage.ID] = stage
		g.ordered = append(g.ordered, stage)
	}
	sort.Slice(g.ordered, func(i, j int) bool {
		if g.ordered[i].StageOrder != g.ordered[j].StageOrder {
			return g.ordered[i].StageOrder < g.ordered[j].StageOrder
		}
		return g.ordered[i].ID < g.ordered[j].ID
	})

	for _, conn := range connections {
		if conn == nil {
			continue
		}
		if _, ok := g.stages[conn.FromStageID]; !ok {
			continue
		}
		if _, ok := g.stages[conn.ToStageID]; !ok {
			continue
		}
		g.outgoing[conn.FromStageID] = append(g.outgoing[conn.FromStageID], conn)
		g.incoming[conn.ToStageID] = append(g.incoming[conn.ToStageID], conn)
	}

	// Deterministic edge order: lowest target stage order first, ties by id.
	for id := range g.outgoing {
		edges := g.outgoing[id]
		sort.Slice(edges, func(i, j int) bool {
			ti := g.stages[edges[i].ToStageID]
			tj := g.stages[edges[j].ToStageID]
			if ti.StageOrder != tj.StageOrder {
				return ti.StageOrder < tj.StageOrder
			}
			return edges[i].ToStageID < edges[j].ToStageID
		})
	}
	return g
}

// Stage returns the stage with the given id, or nil when unknown.
func (g *Graph) Stage(id int64) *WorkflowStage {
	return g.stages[id]
}

// Stages returns all stages ordered by stage order.
func (g *Graph) Stages() []*WorkflowStage {
	cp := make([]*WorkflowStage, len(g.ordered))
	copy(cp, g.ordered)
	return cp
}

// NextStage follows the outgoing connection of the current stage. Terminal
// stages return nil. When a stage has more than one outgoing edge the first
// in deterministic order is taken; callers should check OutgoingCount and
// warn, since branching stages are a configuration smell until condition
// routing exists.
func (g *Graph) NextStage(currentStageID int64) *WorkflowStage {
	edges := g.outgoing[currentStageID]
	if len(edges) == 0 {
		return nil
	}
	return g.stages[edges[0].ToStageID]
}

// OutgoingCount returns the number of outgoing connections from a stage.
func (g *Graph) OutgoingCount(stageID int64) int {
	return len(g.outgoing[stageID])
}

// FirstAnnotationStage returns the annotation stage with the lowest order.
// A workflow without one is malformed and the error says so.
func (g *Graph) FirstAnnotationStage() (*WorkflowStage, error) {
	for _, stage := range g.ordered {
		if stage.Type == StageAnnotation {
			return stage, nil
		}
	}
	return nil, fmt.Errorf("%w: %d stages checked", ErrNoAnnotationStage, len(g.ordered))
}

// CompletionPredecessors returns every stage with an edge into a completion
// stage, deduplicated and ordered by stage order. Completion may be reachable
// from more than one path.
func (g *Graph) CompletionPredecessors() []*WorkflowStage {
	seen := make(map[int64]struct{})
	var result []*WorkflowStage
	for _, stage := range g.ordered {
		if stage.Type != StageCompletion {
			continue
		}
		for _, conn := range g.incoming[stage.ID] {
			if _, ok := seen[conn.FromStageID]; ok {
				continue
			}
			seen[conn.FromStageID] = struct{}{}
			result = append(result, g.stages[conn.FromStageID])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StageOrder != result[j].StageOrder {
			return result[i].StageOrder < result[j].StageOrder
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ConnectionExists reports whether a directed edge from one stage to another
// is configured.
func (g *Graph) ConnectionExists(fromStageID, toStageID int64) bool {
	for _, conn := range g.outgoing[fromStageID] {
		if conn.ToStageID == toStageID {
			return true
		}
	}
	return false
}
