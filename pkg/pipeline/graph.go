package pipeline

import (
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

// plan keeps the registered tasks as a DAG: start -> stage 0 -> ... -> last stage -> end.
// Every task of a stage depends on every task of the previous stage.
type plan struct {
	graph graph.Graph[string, string]
	last  []*model.TaskInfo
}

func newPlan() (*plan, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, name := range []string{model.StartTask.Name, model.EndTask.Name} {
		err := g.AddVertex(name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add %s vertex", name)
		}
	}

	err := g.AddEdge(model.StartTask.Name, model.EndTask.Name)
	if err != nil {
		return nil, errors.Wrap(err, "unable to link start to end")
	}

	return &plan{graph: g}, nil
}

func (pl *plan) lastTasks() []*model.TaskInfo {
	if len(pl.last) == 0 {
		return []*model.TaskInfo{model.StartTask}
	}

	return pl.last
}

func (pl *plan) has(name string) bool {
	_, err := pl.graph.Vertex(name)

	return err == nil
}

func (pl *plan) addStage(infos []*model.TaskInfo) error {
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if _, ok := seen[info.Name]; ok || pl.has(info.Name) {
			return errors.Wrap(ErrDuplicateTask, info.Name)
		}

		seen[info.Name] = struct{}{}
	}

	parents := pl.lastTasks()
	for _, parent := range parents {
		err := pl.graph.RemoveEdge(parent.Name, model.EndTask.Name)
		if err != nil && !errors.Is(err, graph.ErrEdgeNotFound) {
			return errors.Wrapf(err, "unable to unlink %s from end", parent.Name)
		}
	}

	for _, info := range infos {
		err := pl.graph.AddVertex(info.Name)
		if err != nil {
			return errors.Wrapf(err, "unable to add vertex %s", info.Name)
		}

		for _, parent := range parents {
			err := pl.graph.AddEdge(parent.Name, info.Name)
			if err != nil {
				return errors.Wrapf(err, "unable to add edge from %s to %s", parent.Name, info.Name)
			}
		}

		err = pl.graph.AddEdge(info.Name, model.EndTask.Name)
		if err != nil {
			return errors.Wrapf(err, "unable to link %s to end", info.Name)
		}
	}

	pl.last = infos

	return nil
}

// Order returns the registered task names in an order that satisfies every dependency.
// Members of a concurrent group are sorted by name.
func (p *Pipeline) Order() ([]string, error) {
	order, err := graph.StableTopologicalSort(p.plan.graph, func(a, b string) bool {
		return a < b
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to sort tasks")
	}

	res := make([]string, 0, len(order))
	for _, name := range order {
		if name == model.StartTask.Name || name == model.EndTask.Name {
			continue
		}

		res = append(res, name)
	}

	return res, nil
}

// Predecessors returns every task that must complete before name starts, sorted by name.
func (p *Pipeline) Predecessors(name string) ([]string, error) {
	if !p.plan.has(name) {
		return nil, errors.Wrap(ErrTaskNotFound, name)
	}

	predecessors, err := p.plan.graph.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to get predecessor map")
	}

	visited := map[string]struct{}{}
	queue := []string{name}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for parent := range predecessors[curr] {
			if _, ok := visited[parent]; ok {
				continue
			}

			visited[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}

	delete(visited, model.StartTask.Name)

	res := make([]string, 0, len(visited))
	for parent := range visited {
		res = append(res, parent)
	}

	sort.Strings(res)

	return res, nil
}
