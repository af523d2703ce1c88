package domain

import (
	"fmt"
	"maps"
	"slices"
)

// TaskSet is an ordered sequence of task ids. Duplicates are kept.
type TaskSet struct {
	ids []TaskID
}

func NewTaskSet(ids ...TaskID) (TaskSet, error) {
	for i, id := range ids {
		if !id.Valid() {
			return TaskSet{}, fmt.Errorf("%w: taskset entry %d has an empty id", ErrInvalidModel, i)
		}
	}
	return TaskSet{ids: slices.Clone(ids)}, nil
}

// IDs returns the ids in insertion order. The slice is a copy.
func (s TaskSet) IDs() []TaskID { return slices.Clone(s.ids) }

func (s TaskSet) Len() int                { return len(s.ids) }
func (s TaskSet) At(i int) TaskID         { return s.ids[i] }
func (s TaskSet) Contains(id TaskID) bool { return slices.Contains(s.ids, id) }

func (s TaskSet) Equal(o TaskSet) bool { return slices.Equal(s.ids, o.ids) }

// Task is a named unit of work. Code names what an executor should run.
type Task struct {
	id   TaskID
	name string
	code string
	meta map[string]string
}

func NewTask(id TaskID, name, code string, meta map[string]string) (Task, error) {
	if !id.Valid() {
		return Task{}, fmt.Errorf("%w: task id is empty", ErrInvalidModel)
	}
	m := make(map[string]string, len(meta))
	maps.Copy(m, meta)
	return Task{id: id, name: name, code: code, meta: m}, nil
}

func (t Task) ID() TaskID   { return t.id }
func (t Task) Name() string { return t.name }
func (t Task) Code() string { return t.code }

// Meta returns a copy of the task metadata.
func (t Task) Meta() map[string]string { return maps.Clone(t.meta) }

// MetaValue looks up a single metadata key.
func (t Task) MetaValue(key string) (string, bool) {
	v, ok := t.meta[key]
	return v, ok
}

func (t Task) Equal(o Task) bool {
	return t.id == o.id && t.name == o.name && t.code == o.code && maps.Equal(t.meta, o.meta)
}
