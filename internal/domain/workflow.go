package domain

import "fmt"

// Workflow binds a name to the tasks it runs. Tasks are referenced by id only.
type Workflow struct {
	id    WorkflowID
	name  string
	tasks TaskSet
}

func NewWorkflow(id WorkflowID, name string, tasks TaskSet) (Workflow, error) {
	if !id.Valid() {
		return Workflow{}, fmt.Errorf("%w: workflow id is empty", ErrInvalidModel)
	}
	return Workflow{id: id, name: name, tasks: tasks}, nil
}

func (w Workflow) ID() WorkflowID { return w.id }
func (w Workflow) Name() string   { return w.name }
func (w Workflow) Tasks() TaskSet { return w.tasks }

func (w Workflow) Equal(o Workflow) bool {
	return w.id == o.id && w.name == o.name && w.tasks.Equal(o.tasks)
}
