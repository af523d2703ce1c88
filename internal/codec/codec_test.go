package codec

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcore/internal/domain"
)

func useUTC(t *testing.T) {
	t.Helper()
	prev := time.Local
	time.Local = time.UTC
	t.Cleanup(func() { time.Local = prev })
}

func sampleTaskSet(t *testing.T) domain.TaskSet {
	t.Helper()
	ts, err := domain.NewTaskSet("T1", "T2", "T3")
	require.NoError(t, err)
	return ts
}

func sampleSchedule(t *testing.T) domain.Schedule {
	t.Helper()
	rep, err := domain.NewRepetition(10*time.Minute, domain.Absolute)
	require.NoError(t, err)
	s, err := domain.NewSchedule("s1", "wf1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rep)
	require.NoError(t, err)
	return s
}

func TestWireShapes(t *testing.T) {
	useUTC(t)

	task, err := domain.NewTask("t1", "build", "make", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	wf, err := domain.NewWorkflow("wf1", "nightly", sampleTaskSet(t))
	require.NoError(t, err)
	rep, err := domain.NewRepetition(5*time.Minute, domain.Relative)
	require.NoError(t, err)

	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"id", EncodeID(domain.TaskID("t1")), `{"id":"t1"}`},
		{"taskset", EncodeTaskSet(sampleTaskSet(t)), `{"taskset":[{"id":"T1"},{"id":"T2"},{"id":"T3"}]}`},
		{"task", EncodeTask(task), `{"task":{"id":"t1","name":"build","code":"make","meta":{"a":"1","b":"2"}}}`},
		{"tasks", EncodeTasks([]domain.Task{task}), `{"tasks":[{"task":{"id":"t1","name":"build","code":"make","meta":{"a":"1","b":"2"}}}]}`},
		{"repetition", EncodeRepetition(rep), `{"repetition":{"duration":"5.00m","type":"RELATIVE"}}`},
		{"none", EncodeRepetition(domain.None), `{"repetition":{"duration":"0.00ns","type":"ABSOLUTE"}}`},
		{"workflow", EncodeWorkflow(wf), `{"workflow":{"id":"wf1","name":"nightly","taskset":[{"id":"T1"},{"id":"T2"},{"id":"T3"}]}}`},
		{"schedule", EncodeSchedule(sampleSchedule(t)),
			`{"schedule":{"repetition":{"duration":"10.00m","type":"ABSOLUTE"},"id":"s1","workflowid":"wf1","lastdate":"2024-01-01T00:00:00.000+0000"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(tt.got))
			assert.Equal(t, tt.want, string(tt.got))
		})
	}
}

func TestEmptyCollectionsEncodeAsArraysAndObjects(t *testing.T) {
	empty, err := domain.NewTaskSet()
	require.NoError(t, err)
	assert.Equal(t, `{"taskset":[]}`, string(EncodeTaskSet(empty)))

	task, err := domain.NewTask("t1", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"task":{"id":"t1","name":"","code":"","meta":{}}}`, string(EncodeTask(task)))
	assert.Equal(t, `{"tasks":[]}`, string(EncodeTasks(nil)))
}

func TestRoundTrip(t *testing.T) {
	ts := sampleTaskSet(t)
	task, err := domain.NewTask("t1", "build", "make", map[string]string{"queue": "fast", "owner": "ops", "": "blank"})
	require.NoError(t, err)
	other, err := domain.NewTask("t2", "deploy", "kubectl apply", nil)
	require.NoError(t, err)
	wf, err := domain.NewWorkflow("wf1", "nightly", ts)
	require.NoError(t, err)
	rel, err := domain.NewRepetition(90*time.Second+7*time.Millisecond, domain.Relative)
	require.NoError(t, err)
	odd, err := domain.NewSchedule("s2", "wf1", time.Date(2024, 2, 29, 23, 59, 59, 999000000, time.FixedZone("Z", 2*3600)), rel)
	require.NoError(t, err)

	t.Run("id", func(t *testing.T) {
		got, err := DecodeID(EncodeID(domain.WorkflowID("wf_9")))
		require.NoError(t, err)
		assert.Equal(t, "wf_9", got)
	})
	t.Run("taskset", func(t *testing.T) {
		got, err := DecodeTaskSet(EncodeTaskSet(ts))
		require.NoError(t, err)
		assert.Equal(t, []domain.TaskID{"T1", "T2", "T3"}, got.IDs())
	})
	t.Run("task", func(t *testing.T) {
		got, err := DecodeTask(EncodeTask(task))
		require.NoError(t, err)
		assert.True(t, got.Equal(task))
	})
	t.Run("tasks", func(t *testing.T) {
		got, err := DecodeTasks(EncodeTasks([]domain.Task{task, other}))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].Equal(task))
		assert.True(t, got[1].Equal(other))
	})
	t.Run("repetition", func(t *testing.T) {
		for _, r := range []domain.Repetition{rel, domain.None} {
			got, err := DecodeRepetition(EncodeRepetition(r))
			require.NoError(t, err)
			assert.Equal(t, r, got)
		}
	})
	t.Run("workflow", func(t *testing.T) {
		got, err := DecodeWorkflow(EncodeWorkflow(wf))
		require.NoError(t, err)
		assert.True(t, got.Equal(wf))
	})
	t.Run("schedule", func(t *testing.T) {
		for _, s := range []domain.Schedule{sampleSchedule(t), odd} {
			got, err := DecodeSchedule(EncodeSchedule(s))
			require.NoError(t, err)
			assert.True(t, got.Equal(s), "got %s want %s", got.LastExecution(), s.LastExecution())
		}
	})
}

func TestScheduleRoundTripAtYearBounds(t *testing.T) {
	useUTC(t)
	for _, last := range []time.Time{
		time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC),
		time.Date(1, 1, 1, 0, 0, 0, 1e6, time.UTC),
	} {
		s, err := domain.NewSchedule("s1", "wf1", last, domain.None)
		require.NoError(t, err)
		got, err := DecodeSchedule(EncodeSchedule(s))
		require.NoError(t, err, last.String())
		assert.True(t, got.Equal(s))
	}

	_, err := domain.NewSchedule("s1", "wf1", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), domain.None)
	assert.ErrorIs(t, err, domain.ErrInvalidModel)
}

func TestTaskSetOrderSurvivesWorkflow(t *testing.T) {
	ts, err := domain.NewTaskSet("c", "a", "b", "a")
	require.NoError(t, err)
	wf, err := domain.NewWorkflow("wf", "w", ts)
	require.NoError(t, err)

	got, err := DecodeWorkflow(EncodeWorkflow(wf))
	require.NoError(t, err)
	assert.Equal(t, []domain.TaskID{"c", "a", "b", "a"}, got.Tasks().IDs())
}

func TestDocumentCarriesSeveralEntities(t *testing.T) {
	wf, err := domain.NewWorkflow("wf1", "nightly", sampleTaskSet(t))
	require.NoError(t, err)
	s := sampleSchedule(t)

	doc := NewDocument()
	doc.PutWorkflow(wf)
	doc.PutSchedule(s)

	parsed, err := ParseDocument(doc.Bytes())
	require.NoError(t, err)
	assert.True(t, parsed.Has(KeyWorkflow))
	assert.True(t, parsed.Has(KeySchedule))
	assert.False(t, parsed.Has(KeyTask))

	gotWf, err := parsed.Workflow()
	require.NoError(t, err)
	assert.True(t, gotWf.Equal(wf))
	gotS, err := parsed.Schedule()
	require.NoError(t, err)
	assert.True(t, gotS.Equal(s))
}

func decodeErr(t *testing.T, err error) *DecodeError {
	t.Helper()
	require.Error(t, err)
	var de *DecodeError
	require.True(t, errors.As(err, &de), "want *DecodeError, got %T: %v", err, err)
	return de
}

func TestScheduleMissingLastDate(t *testing.T) {
	_, err := DecodeSchedule([]byte(`{"schedule":{"repetition":{"duration":"10.00m","type":"ABSOLUTE"},"id":"s1","workflowid":"wf1"}}`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
	de := decodeErr(t, err)
	assert.Equal(t, "schedule", de.Entity)
	assert.Equal(t, "lastdate", de.Field)
	assert.Contains(t, err.Error(), "schedule.lastdate")
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) error
		doc    string
		kind   error
		entity string
		field  string
		value  string
	}{
		{
			name:   "not json",
			decode: func(b []byte) error { _, err := DecodeWorkflow(b); return err },
			doc:    `{"workflow":`,
			kind:   ErrMalformedDocument, entity: "document",
		},
		{
			name:   "array root",
			decode: func(b []byte) error { _, err := DecodeWorkflow(b); return err },
			doc:    `[]`,
			kind:   ErrMalformedDocument, entity: "document",
		},
		{
			name:   "null root",
			decode: func(b []byte) error { _, err := DecodeTask(b); return err },
			doc:    `null`,
			kind:   ErrMalformedDocument, entity: "document",
		},
		{
			name:   "missing wrapper",
			decode: func(b []byte) error { _, err := DecodeWorkflow(b); return err },
			doc:    `{"task":{}}`,
			kind:   ErrMalformedDocument, entity: "workflow",
		},
		{
			name:   "null wrapper",
			decode: func(b []byte) error { _, err := DecodeSchedule(b); return err },
			doc:    `{"schedule":null}`,
			kind:   ErrMalformedDocument, entity: "schedule",
		},
		{
			name:   "workflow missing taskset",
			decode: func(b []byte) error { _, err := DecodeWorkflow(b); return err },
			doc:    `{"workflow":{"id":"wf","name":"n"}}`,
			kind:   ErrMalformedDocument, entity: "workflow", field: "taskset",
		},
		{
			name:   "workflow taskset entry without id",
			decode: func(b []byte) error { _, err := DecodeWorkflow(b); return err },
			doc:    `{"workflow":{"id":"wf","name":"n","taskset":[{"id":"a"},{}]}}`,
			kind:   ErrMalformedDocument, entity: "workflow", field: "taskset[1].id",
		},
		{
			name:   "workflow empty id",
			decode: func(b []byte) error { _, err := DecodeWorkflow(b); return err },
			doc:    `{"workflow":{"id":"","name":"n","taskset":[]}}`,
			kind:   ErrMalformedDocument, entity: "workflow", field: "id",
		},
		{
			name:   "task missing code",
			decode: func(b []byte) error { _, err := DecodeTask(b); return err },
			doc:    `{"task":{"id":"t","name":"n","meta":{}}}`,
			kind:   ErrMalformedDocument, entity: "task", field: "code",
		},
		{
			name:   "task missing meta",
			decode: func(b []byte) error { _, err := DecodeTask(b); return err },
			doc:    `{"task":{"id":"t","name":"n","code":"c"}}`,
			kind:   ErrMalformedDocument, entity: "task", field: "meta",
		},
		{
			name:   "task wrong type",
			decode: func(b []byte) error { _, err := DecodeTask(b); return err },
			doc:    `{"task":{"id":"t","name":7,"code":"c","meta":{}}}`,
			kind:   ErrMalformedDocument, entity: "task", field: "name",
		},
		{
			name:   "bad duration",
			decode: func(b []byte) error { _, err := DecodeRepetition(b); return err },
			doc:    `{"repetition":{"duration":"ten minutes","type":"RELATIVE"}}`,
			kind:   ErrInvalidDuration, entity: "repetition", field: "duration", value: "ten minutes",
		},
		{
			name:   "bad type",
			decode: func(b []byte) error { _, err := DecodeRepetition(b); return err },
			doc:    `{"repetition":{"duration":"1.00m","type":"WEEKLY"}}`,
			kind:   ErrInvalidEnum, entity: "repetition", field: "type", value: "WEEKLY",
		},
		{
			name:   "schedule bad nested duration",
			decode: func(b []byte) error { _, err := DecodeSchedule(b); return err },
			doc:    `{"schedule":{"repetition":{"duration":"5x","type":"ABSOLUTE"},"id":"s","workflowid":"w","lastdate":"2024-01-01T00:00:00.000+0000"}}`,
			kind:   ErrInvalidDuration, entity: "schedule", field: "repetition.duration", value: "5x",
		},
		{
			name:   "schedule missing repetition",
			decode: func(b []byte) error { _, err := DecodeSchedule(b); return err },
			doc:    `{"schedule":{"id":"s","workflowid":"w","lastdate":"2024-01-01T00:00:00.000+0000"}}`,
			kind:   ErrMalformedDocument, entity: "schedule", field: "repetition",
		},
		{
			name:   "schedule bad timestamp",
			decode: func(b []byte) error { _, err := DecodeSchedule(b); return err },
			doc:    `{"schedule":{"repetition":{"duration":"5m","type":"ABSOLUTE"},"id":"s","workflowid":"w","lastdate":"2024-01-01T00:00:00Z"}}`,
			kind:   ErrInvalidTimestamp, entity: "schedule", field: "lastdate", value: "2024-01-01T00:00:00Z",
		},
		{
			name:   "schedule missing workflow id",
			decode: func(b []byte) error { _, err := DecodeSchedule(b); return err },
			doc:    `{"schedule":{"repetition":{"duration":"5m","type":"ABSOLUTE"},"id":"s","lastdate":"2024-01-01T00:00:00.000+0000"}}`,
			kind:   ErrMalformedDocument, entity: "schedule", field: "workflowid",
		},
		{
			name:   "id missing",
			decode: func(b []byte) error { _, err := DecodeID(b); return err },
			doc:    `{}`,
			kind:   ErrMalformedDocument, entity: "id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.kind)
			de := decodeErr(t, err)
			assert.Equal(t, tt.entity, de.Entity)
			assert.Equal(t, tt.field, de.Field)
			assert.Equal(t, tt.value, de.Value)
		})
	}
}

func TestDecodeErrorKindsAreDistinct(t *testing.T) {
	_, err := DecodeRepetition([]byte(`{"repetition":{"duration":"1m","type":"NEVER"}}`))
	assert.ErrorIs(t, err, ErrInvalidEnum)
	assert.NotErrorIs(t, err, ErrMalformedDocument)
	assert.NotErrorIs(t, err, ErrInvalidDuration)
	assert.NotErrorIs(t, err, ErrInvalidTimestamp)
}

func TestDecodeTasksSkipsCorruptEntries(t *testing.T) {
	doc := `{"tasks":[
		{"task":{"id":"t1","name":"a","code":"x","meta":{}}},
		{"task":{"id":"t2","name":"b","meta":{}}},
		{"nottask":{}},
		"garbage",
		{"task":{"id":"t5","name":"e","code":"y","meta":{"k":"v"}}}
	]}`
	tasks, err := DecodeTasks([]byte(doc))
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskID("t1"), tasks[0].ID())
	assert.Equal(t, domain.TaskID("t5"), tasks[1].ID())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.Contains(t, err.Error(), "tasks[1].task.code")
	assert.Contains(t, err.Error(), "tasks[2].task")
	assert.Contains(t, err.Error(), "tasks[3]")
}

func TestDecodeTasksMissingWrapper(t *testing.T) {
	tasks, err := DecodeTasks([]byte(`{"task":{}}`))
	assert.Nil(t, tasks)
	de := decodeErr(t, err)
	assert.Equal(t, "tasks", de.Entity)
}

func TestConcurrentEncodeDecode(t *testing.T) {
	s := sampleSchedule(t)
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := s.WithLastExecution(s.LastExecution().Add(time.Duration(i) * time.Millisecond))
			got, err := DecodeSchedule(EncodeSchedule(next))
			if err != nil {
				errs <- err
				return
			}
			if !got.Equal(next) {
				errs <- errors.New("round trip mismatch")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
