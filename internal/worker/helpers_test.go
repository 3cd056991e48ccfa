package worker

import "github.com/hibiken/asynq"

func newAsynqTask(typename string, payload []byte) *asynq.Task {
	return asynq.NewTask(typename, payload)
}
