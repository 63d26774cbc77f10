package puzzle

// Update is one observer-facing state delta or snapshot.
// Fields are free-form; every update built by this package carries "puzzle_id".
type Update map[string]any

// NewUpdate returns an update addressed to the given puzzle.
func NewUpdate(id int) Update {
	return Update{"puzzle_id": id}
}

// With sets key and returns u for chaining.
func (u Update) With(key string, value any) Update {
	u[key] = value
	return u
}

// Merge copies every field of other into u and returns u.
func (u Update) Merge(other Update) Update {
	for k, v := range other {
		u[k] = v
	}
	return u
}

// Sink receives updates. Push is called synchronously while the producing
// puzzle holds its lock, so implementations must not block.
type Sink interface {
	Push(update Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(update Update)

// Push calls f(update).
func (f SinkFunc) Push(update Update) {
	f(update)
}

// MultiSink pushes every update to each sink in order.
type MultiSink []Sink

// Push implements Sink.
func (m MultiSink) Push(update Update) {
	for _, s := range m {
		s.Push(update)
	}
}

// Publisher sends short device-control commands ("P3Start", "P3End").
// Like Sink, Publish must not block.
type Publisher interface {
	Publish(command string)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(command string)

// Publish calls f(command).
func (f PublisherFunc) Publish(command string) {
	f(command)
}

type discard struct{}

func (discard) Push(Update)    {}
func (discard) Publish(string) {}
