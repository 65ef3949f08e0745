package quest

import (
	"reflect"
)

// Builder stages the payload and synchronous handlers of a Quest:
//
//	q, err := quest.NewBuilder[Order]().
//	    WithPayload(order).
//	    OnComplete(func() { msg.Ack() }).
//	    OnError(func(err error) { msg.Unlock(err) }).
//	    Build()
//
// Handler setters panic with an *ArgumentError when given nil. Build reports
// whatever is still missing.
type Builder[T any] struct {
	payload    T
	hasPayload bool
	id         string
	obs        Observer
	onComplete Action
	onError    ErrorAction
}

// NewBuilder returns an empty synchronous builder.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// WithPayload stages the payload. Validation happens in Build.
func (b *Builder[T]) WithPayload(payload T) *Builder[T] {
	b.payload = payload
	b.hasPayload = true
	return b
}

// WithID sets the quest ID. Without it Build generates one.
func (b *Builder[T]) WithID(id string) *Builder[T] {
	b.id = id
	return b
}

// WithObserver attaches an observer that is inherited by derived quests.
func (b *Builder[T]) WithObserver(obs Observer) *Builder[T] {
	b.obs = obs
	return b
}

// OnComplete stages the completion handler.
func (b *Builder[T]) OnComplete(fn Action) *Builder[T] {
	if fn == nil {
		panic(newArgumentError("onComplete"))
	}
	b.onComplete = fn
	return b
}

// OnError stages the error handler.
func (b *Builder[T]) OnError(fn ErrorAction) *Builder[T] {
	if fn == nil {
		panic(newArgumentError("onError"))
	}
	b.onError = fn
	return b
}

// Build validates the staged fields, in order payload, onComplete, onError,
// and returns a Pending quest. The first missing field is reported as an
// ErrInvalidState error.
func (b *Builder[T]) Build() (*Quest[T], error) {
	if !b.hasPayload || isNilValue(b.payload) {
		return nil, missingField("payload must be set before building a quest")
	}
	if b.onComplete == nil {
		return nil, missingField("onComplete action must be set before building a quest")
	}
	if b.onError == nil {
		return nil, missingField("onError action must be set before building a quest")
	}
	h := syncHandlers{onComplete: b.onComplete, onError: b.onError}
	return newQuest(b.payload, h, b.id, b.obs), nil
}

// AsyncBuilder stages the payload and asynchronous handlers of a Quest.
// It behaves like Builder.
type AsyncBuilder[T any] struct {
	payload    T
	hasPayload bool
	id         string
	obs        Observer
	onComplete AsyncAction
	onError    AsyncErrorAction
}

// NewAsyncBuilder returns an empty asynchronous builder.
func NewAsyncBuilder[T any]() *AsyncBuilder[T] {
	return &AsyncBuilder[T]{}
}

func (b *AsyncBuilder[T]) WithPayload(payload T) *AsyncBuilder[T] {
	b.payload = payload
	b.hasPayload = true
	return b
}

func (b *AsyncBuilder[T]) WithID(id string) *AsyncBuilder[T] {
	b.id = id
	return b
}

func (b *AsyncBuilder[T]) WithObserver(obs Observer) *AsyncBuilder[T] {
	b.obs = obs
	return b
}

func (b *AsyncBuilder[T]) OnCompleteAsync(fn AsyncAction) *AsyncBuilder[T] {
	if fn == nil {
		panic(newArgumentError("onComplete"))
	}
	b.onComplete = fn
	return b
}

func (b *AsyncBuilder[T]) OnErrorAsync(fn AsyncErrorAction) *AsyncBuilder[T] {
	if fn == nil {
		panic(newArgumentError("onError"))
	}
	b.onError = fn
	return b
}

func (b *AsyncBuilder[T]) Build() (*Quest[T], error) {
	if !b.hasPayload || isNilValue(b.payload) {
		return nil, missingField("payload must be set before building a quest")
	}
	if b.onComplete == nil {
		return nil, missingField("onComplete action must be set before building a quest")
	}
	if b.onError == nil {
		return nil, missingField("onError action must be set before building a quest")
	}
	h := asyncHandlers{onComplete: b.onComplete, onError: b.onError}
	return newQuest(b.payload, h, b.id, b.obs), nil
}

// isNilValue reports whether v is a nil reference. Zero values of other kinds,
// such as 0 or "", are valid payloads.
func isNilValue[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
