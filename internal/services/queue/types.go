package queue

import "context"

// Remover deletes an object from a storage bucket.
type Remover interface {
	DeleteFrom(ctx context.Context, bucket, key string) error
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
	outcomeDrop
)

func (o outcome) String() string {
	switch o {
	case outcomeDone:
		return "done"
	case outcomeRetry:
		return "retry"
	default:
		return "drop"
	}
}
