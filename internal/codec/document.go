// Package codec maps the workflow model to and from its JSON wire form.
//
// Field names, nesting and the duration and timestamp formats are shared by
// every process that reads or writes these documents; changing any of them
// is a breaking change. All functions are safe for concurrent use.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"flowcore/internal/domain"
)

// Wrapper keys.
const (
	KeyWorkflow   = "workflow"
	KeySchedule   = "schedule"
	KeyTask       = "task"
	KeyTasks      = "tasks"
	KeyTaskSet    = "taskset"
	KeyRepetition = "repetition"
	KeyID         = "id"
)

// Document is one JSON object that carries entities under their wrapper
// keys. Several entities may share a document.
type Document struct {
	nodes map[string]json.RawMessage
}

func NewDocument() *Document {
	return &Document{nodes: make(map[string]json.RawMessage)}
}

// ParseDocument fails with ErrMalformedDocument unless data is a JSON object.
func ParseDocument(data []byte) (*Document, error) {
	var nodes map[string]json.RawMessage
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, malformed("document", "", err)
	}
	if nodes == nil {
		return nil, malformed("document", "", errors.New("not a JSON object"))
	}
	return &Document{nodes: nodes}, nil
}

// Has reports whether key is present and not null.
func (d *Document) Has(key string) bool {
	raw, ok := d.nodes[key]
	return ok && !isNull(raw)
}

// Bytes encodes the document.
func (d *Document) Bytes() []byte { return mustMarshal(d.nodes) }

func (d *Document) put(key string, v any) { d.nodes[key] = mustMarshal(v) }

func (d *Document) node(key string) (json.RawMessage, error) {
	raw, ok := d.nodes[key]
	if !ok || isNull(raw) {
		return nil, missing(key, "")
	}
	return raw, nil
}

// PutID writes a naked {"id": ...} field.
func (d *Document) PutID(id string) { d.put(KeyID, id) }

func (d *Document) ID() (string, error) {
	raw, err := d.node(KeyID)
	if err != nil {
		return "", err
	}
	var id string
	if err := unmarshalNode(KeyID, raw, &id); err != nil {
		return "", err
	}
	if id == "" {
		return "", malformed(KeyID, "", errEmptyID)
	}
	return id, nil
}

// PutTaskSet writes a naked {"taskset": [...]} field.
func (d *Document) PutTaskSet(ts domain.TaskSet) { d.put(KeyTaskSet, toTaskSetWire(ts)) }

func (d *Document) TaskSet() (domain.TaskSet, error) {
	raw, err := d.node(KeyTaskSet)
	if err != nil {
		return domain.TaskSet{}, err
	}
	var w []idWire
	if err := unmarshalNode(KeyTaskSet, raw, &w); err != nil {
		return domain.TaskSet{}, err
	}
	return fromTaskSetWire(w, KeyTaskSet, "")
}

func (d *Document) PutTask(t domain.Task) { d.put(KeyTask, toTaskWire(t)) }

func (d *Document) Task() (domain.Task, error) {
	raw, err := d.node(KeyTask)
	if err != nil {
		return domain.Task{}, err
	}
	var w taskWire
	if err := unmarshalNode(KeyTask, raw, &w); err != nil {
		return domain.Task{}, err
	}
	return fromTaskWire(&w, KeyTask, "")
}

// PutTasks writes {"tasks": [{"task": {...}}, ...]} in slice order.
func (d *Document) PutTasks(tasks []domain.Task) {
	items := make([]taskItemWire, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskItemWire{Task: toTaskWire(t)})
	}
	d.put(KeyTasks, items)
}

// Tasks decodes every task it can. A corrupt entry does not stop the others:
// the good tasks are returned together with the joined per-entry errors.
func (d *Document) Tasks() ([]domain.Task, error) {
	raw, err := d.node(KeyTasks)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := unmarshalNode(KeyTasks, raw, &items); err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(items))
	var errs []error
	for i, item := range items {
		prefix := fmt.Sprintf("[%d].task.", i)
		var w taskItemWire
		if err := json.Unmarshal(item, &w); err != nil {
			errs = append(errs, malformed(KeyTasks, fmt.Sprintf("[%d]", i), err))
			continue
		}
		if w.Task == nil {
			errs = append(errs, missing(KeyTasks, fmt.Sprintf("[%d].task", i)))
			continue
		}
		t, err := fromTaskWire(w.Task, KeyTasks, prefix)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Join(errs...)
}

func (d *Document) PutRepetition(r domain.Repetition) { d.put(KeyRepetition, toRepetitionWire(r)) }

func (d *Document) Repetition() (domain.Repetition, error) {
	raw, err := d.node(KeyRepetition)
	if err != nil {
		return domain.Repetition{}, err
	}
	var w repetitionWire
	if err := unmarshalNode(KeyRepetition, raw, &w); err != nil {
		return domain.Repetition{}, err
	}
	return fromRepetitionWire(&w, KeyRepetition, "")
}

func (d *Document) PutWorkflow(wf domain.Workflow) {
	id := wf.ID().String()
	name := wf.Name()
	d.put(KeyWorkflow, workflowWire{ID: &id, Name: &name, TaskSet: toTaskSetWire(wf.Tasks())})
}

func (d *Document) Workflow() (domain.Workflow, error) {
	raw, err := d.node(KeyWorkflow)
	if err != nil {
		return domain.Workflow{}, err
	}
	var w workflowWire
	if err := unmarshalNode(KeyWorkflow, raw, &w); err != nil {
		return domain.Workflow{}, err
	}

	id, err := requiredID(KeyWorkflow, "id", w.ID)
	if err != nil {
		return domain.Workflow{}, err
	}
	name, err := required(KeyWorkflow, "name", w.Name)
	if err != nil {
		return domain.Workflow{}, err
	}
	ts, err := fromTaskSetWire(w.TaskSet, KeyWorkflow, "")
	if err != nil {
		return domain.Workflow{}, err
	}
	wf, err := domain.NewWorkflow(domain.WorkflowID(id), name, ts)
	if err != nil {
		return domain.Workflow{}, malformed(KeyWorkflow, "", err)
	}
	return wf, nil
}

func (d *Document) PutSchedule(s domain.Schedule) {
	id := s.ID().String()
	wfID := s.WorkflowID().String()
	last := FormatTimestamp(s.LastExecution())
	d.put(KeySchedule, scheduleWire{
		Repetition: toRepetitionWire(s.Repetition()),
		ID:         &id,
		WorkflowID: &wfID,
		LastDate:   &last,
	})
}

func (d *Document) Schedule() (domain.Schedule, error) {
	raw, err := d.node(KeySchedule)
	if err != nil {
		return domain.Schedule{}, err
	}
	var w scheduleWire
	if err := unmarshalNode(KeySchedule, raw, &w); err != nil {
		return domain.Schedule{}, err
	}

	if w.Repetition == nil {
		return domain.Schedule{}, missing(KeySchedule, "repetition")
	}
	rep, err := fromRepetitionWire(w.Repetition, KeySchedule, "repetition.")
	if err != nil {
		return domain.Schedule{}, err
	}
	id, err := requiredID(KeySchedule, "id", w.ID)
	if err != nil {
		return domain.Schedule{}, err
	}
	wfID, err := requiredID(KeySchedule, "workflowid", w.WorkflowID)
	if err != nil {
		return domain.Schedule{}, err
	}
	rawLast, err := required(KeySchedule, "lastdate", w.LastDate)
	if err != nil {
		return domain.Schedule{}, err
	}
	last, err := ParseTimestamp(rawLast)
	if err != nil {
		return domain.Schedule{}, &DecodeError{
			Entity: KeySchedule, Field: "lastdate", Value: rawLast, Kind: ErrInvalidTimestamp, Err: err,
		}
	}

	s, err := domain.NewSchedule(domain.ScheduleID(id), domain.WorkflowID(wfID), last, rep)
	if err != nil {
		return domain.Schedule{}, malformed(KeySchedule, "", err)
	}
	return s, nil
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec: encode %T: %v", v, err))
	}
	return b
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func unmarshalNode(entity string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		var field string
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field = typeErr.Field
		}
		return malformed(entity, field, err)
	}
	return nil
}
