package codec

import (
	"fmt"
	"strings"

	"flowcore/internal/domain"
)

// Wire shapes. Pointer fields let decoding tell an absent field from an
// empty one; struct field order is the order fields are written in.

type idWire struct {
	ID *string `json:"id"`
}

type taskWire struct {
	ID   *string           `json:"id"`
	Name *string           `json:"name"`
	Code *string           `json:"code"`
	Meta map[string]string `json:"meta"`
}

type taskItemWire struct {
	Task *taskWire `json:"task"`
}

type repetitionWire struct {
	Duration *string `json:"duration"`
	Type     *string `json:"type"`
}

type workflowWire struct {
	ID      *string  `json:"id"`
	Name    *string  `json:"name"`
	TaskSet []idWire `json:"taskset"`
}

type scheduleWire struct {
	Repetition *repetitionWire `json:"repetition"`
	ID         *string         `json:"id"`
	WorkflowID *string         `json:"workflowid"`
	LastDate   *string         `json:"lastdate"`
}

func required(entity, field string, v *string) (string, error) {
	if v == nil {
		return "", missing(entity, field)
	}
	return *v, nil
}

func requiredID(entity, field string, v *string) (string, error) {
	s, err := required(entity, field, v)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", malformed(entity, field, errEmptyID)
	}
	return s, nil
}

func toTaskSetWire(ts domain.TaskSet) []idWire {
	out := make([]idWire, 0, ts.Len())
	for _, id := range ts.IDs() {
		s := id.String()
		out = append(out, idWire{ID: &s})
	}
	return out
}

func fromTaskSetWire(w []idWire, entity, prefix string) (domain.TaskSet, error) {
	if w == nil {
		return domain.TaskSet{}, missing(entity, prefix+"taskset")
	}
	ids := make([]domain.TaskID, 0, len(w))
	for i, item := range w {
		id, err := requiredID(entity, fmt.Sprintf("%staskset[%d].id", prefix, i), item.ID)
		if err != nil {
			return domain.TaskSet{}, err
		}
		ids = append(ids, domain.TaskID(id))
	}
	ts, err := domain.NewTaskSet(ids...)
	if err != nil {
		return domain.TaskSet{}, malformed(entity, prefix+"taskset", err)
	}
	return ts, nil
}

func toTaskWire(t domain.Task) *taskWire {
	id := t.ID().String()
	name := t.Name()
	code := t.Code()
	meta := t.Meta()
	if meta == nil {
		meta = map[string]string{}
	}
	return &taskWire{ID: &id, Name: &name, Code: &code, Meta: meta}
}

func fromTaskWire(w *taskWire, entity, prefix string) (domain.Task, error) {
	id, err := requiredID(entity, prefix+"id", w.ID)
	if err != nil {
		return domain.Task{}, err
	}
	name, err := required(entity, prefix+"name", w.Name)
	if err != nil {
		return domain.Task{}, err
	}
	code, err := required(entity, prefix+"code", w.Code)
	if err != nil {
		return domain.Task{}, err
	}
	if w.Meta == nil {
		return domain.Task{}, missing(entity, prefix+"meta")
	}
	t, err := domain.NewTask(domain.TaskID(id), name, code, w.Meta)
	if err != nil {
		return domain.Task{}, malformed(entity, strings.TrimSuffix(prefix, "."), err)
	}
	return t, nil
}

func toRepetitionWire(r domain.Repetition) *repetitionWire {
	d := FormatDuration(r.Duration())
	typ := string(r.Type())
	return &repetitionWire{Duration: &d, Type: &typ}
}

func fromRepetitionWire(w *repetitionWire, entity, prefix string) (domain.Repetition, error) {
	rawDur, err := required(entity, prefix+"duration", w.Duration)
	if err != nil {
		return domain.Repetition{}, err
	}
	rawType, err := required(entity, prefix+"type", w.Type)
	if err != nil {
		return domain.Repetition{}, err
	}
	d, err := ParseDuration(rawDur)
	if err != nil {
		return domain.Repetition{}, &DecodeError{
			Entity: entity, Field: prefix + "duration", Value: rawDur, Kind: ErrInvalidDuration, Err: err,
		}
	}
	typ, err := domain.ParseRepetitionType(rawType)
	if err != nil {
		return domain.Repetition{}, &DecodeError{
			Entity: entity, Field: prefix + "type", Value: rawType, Kind: ErrInvalidEnum,
		}
	}
	r, err := domain.NewRepetition(d, typ)
	if err != nil {
		return domain.Repetition{}, malformed(entity, strings.TrimSuffix(prefix, "."), err)
	}
	return r, nil
}
