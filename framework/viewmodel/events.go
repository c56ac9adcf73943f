package viewmodel

// Event names a view-model notification.
type Event string

const (
	EventChange   Event = "change"
	EventLoading  Event = "loading"
	EventErrors   Event = "errors"
	EventDisposed Event = "disposed"
)

// Change is the payload of EventChange.
type Change struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Loading is the payload of EventLoading.
type Loading struct {
	Loading bool `json:"loading"`
}

// Errors is the payload of EventErrors: the full list after the change.
type Errors struct {
	Errors []string `json:"errors"`
}

// Disposed is the payload of EventDisposed.
type Disposed struct {
	Name string `json:"name"`
}
