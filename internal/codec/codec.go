package codec

import "flowcore/internal/domain"

// EncodeID writes {"id": <id>}.
func EncodeID[T ~string](id T) []byte {
	d := NewDocument()
	d.PutID(string(id))
	return d.Bytes()
}

func DecodeID(data []byte) (string, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return "", err
	}
	return d.ID()
}

// EncodeTaskSet writes {"taskset": [{"id": ...}, ...]}.
func EncodeTaskSet(ts domain.TaskSet) []byte {
	d := NewDocument()
	d.PutTaskSet(ts)
	return d.Bytes()
}

func DecodeTaskSet(data []byte) (domain.TaskSet, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return domain.TaskSet{}, err
	}
	return d.TaskSet()
}

func EncodeTask(t domain.Task) []byte {
	d := NewDocument()
	d.PutTask(t)
	return d.Bytes()
}

func DecodeTask(data []byte) (domain.Task, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return domain.Task{}, err
	}
	return d.Task()
}

func EncodeTasks(tasks []domain.Task) []byte {
	d := NewDocument()
	d.PutTasks(tasks)
	return d.Bytes()
}

// DecodeTasks returns the decodable tasks even when err is non-nil; see
// Document.Tasks.
func DecodeTasks(data []byte) ([]domain.Task, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return d.Tasks()
}

func EncodeRepetition(r domain.Repetition) []byte {
	d := NewDocument()
	d.PutRepetition(r)
	return d.Bytes()
}

func DecodeRepetition(data []byte) (domain.Repetition, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return domain.Repetition{}, err
	}
	return d.Repetition()
}

func EncodeWorkflow(wf domain.Workflow) []byte {
	d := NewDocument()
	d.PutWorkflow(wf)
	return d.Bytes()
}

func DecodeWorkflow(data []byte) (domain.Workflow, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return domain.Workflow{}, err
	}
	return d.Workflow()
}

func EncodeSchedule(s domain.Schedule) []byte {
	d := NewDocument()
	d.PutSchedule(s)
	return d.Bytes()
}

func DecodeSchedule(data []byte) (domain.Schedule, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return domain.Schedule{}, err
	}
	return d.Schedule()
}
