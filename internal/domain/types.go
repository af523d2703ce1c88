package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidModel is wrapped by every constructor failure in this package.
var ErrInvalidModel = errors.New("invalid model")

// TaskID identifies a Task.
type TaskID string

// WorkflowID identifies a Workflow.
type WorkflowID string

// ScheduleID identifies a Schedule.
type ScheduleID string

func NewTaskID() TaskID         { return TaskID("tsk_" + uuid.NewString()) }
func NewWorkflowID() WorkflowID { return WorkflowID("wf_" + uuid.NewString()) }
func NewScheduleID() ScheduleID { return ScheduleID("sch_" + uuid.NewString()) }

func (id TaskID) String() string     { return string(id) }
func (id WorkflowID) String() string { return string(id) }
func (id ScheduleID) String() string { return string(id) }

func (id TaskID) Valid() bool     { return id != "" }
func (id WorkflowID) Valid() bool { return id != "" }
func (id ScheduleID) Valid() bool { return id != "" }
