package domain

import (
	"fmt"
	"time"
)

// Schedule binds a workflow to a repetition and remembers when it last ran.
// A fire produces a replacement via WithLastExecution; the value itself never changes.
type Schedule struct {
	id            ScheduleID
	workflowID    WorkflowID
	lastExecution time.Time
	repetition    Repetition
}

// NewSchedule truncates lastExecution to the millisecond, the precision
// schedules are stored with.
func NewSchedule(id ScheduleID, workflowID WorkflowID, lastExecution time.Time, repetition Repetition) (Schedule, error) {
	if !id.Valid() {
		return Schedule{}, fmt.Errorf("%w: schedule id is empty", ErrInvalidModel)
	}
	if !workflowID.Valid() {
		return Schedule{}, fmt.Errorf("%w: schedule %s has an empty workflow id", ErrInvalidModel, id)
	}
	if lastExecution.IsZero() {
		return Schedule{}, fmt.Errorf("%w: schedule %s has no last execution", ErrInvalidModel, id)
	}
	if !inWireYears(lastExecution) {
		return Schedule{}, fmt.Errorf("%w: schedule %s last execution %s is outside years 0000-9999", ErrInvalidModel, id, lastExecution)
	}
	if !repetition.Type().Valid() {
		return Schedule{}, fmt.Errorf("%w: schedule %s has no repetition", ErrInvalidModel, id)
	}
	return Schedule{
		id:            id,
		workflowID:    workflowID,
		lastExecution: lastExecution.Truncate(time.Millisecond),
		repetition:    repetition,
	}, nil
}

// Timestamps are written with a four digit year in the local zone.
func inWireYears(t time.Time) bool {
	for _, y := range []int{t.UTC().Year(), t.In(time.Local).Year()} {
		if y < 0 || y > 9999 {
			return false
		}
	}
	return true
}

func (s Schedule) ID() ScheduleID           { return s.id }
func (s Schedule) WorkflowID() WorkflowID   { return s.workflowID }
func (s Schedule) LastExecution() time.Time { return s.lastExecution }
func (s Schedule) Repetition() Repetition   { return s.repetition }

// WithLastExecution returns the schedule that replaces s after a fire at t.
func (s Schedule) WithLastExecution(t time.Time) Schedule {
	s.lastExecution = t.Truncate(time.Millisecond)
	return s
}

func (s Schedule) Equal(o Schedule) bool {
	return s.id == o.id &&
		s.workflowID == o.workflowID &&
		s.lastExecution.Equal(o.lastExecution) &&
		s.repetition == o.repetition
}
