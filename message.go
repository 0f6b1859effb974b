package tempo

// kind tags a relay message. Control signals share the data channel with
// values but never borrow a value of T.
type kind uint8

const (
	kindValue kind = iota
	kindCompleted
	kindTimedOut
	kindFailed
)

// message is what a producer task hands to its selector loop.
type message[T any] struct {
	kind kind
	val  T
	err  error
}

func valueMsg[T any](v T) message[T] {
	return message[T]{kind: kindValue, val: v}
}

func completedMsg[T any]() message[T] {
	return message[T]{kind: kindCompleted}
}

func timedOutMsg[T any]() message[T] {
	return message[T]{kind: kindTimedOut}
}

func failedMsg[T any](err error) message[T] {
	return message[T]{kind: kindFailed, err: err}
}
