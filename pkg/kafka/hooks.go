package kafka

import "context"

// ConsumerHook observes message handling. BeforeHandle may replace the context
// or payload; an error from it skips the handler and counts as a failure.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, data []byte) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, topic string, data []byte, err error)
	OnError(ctx context.Context, topic string, data []byte, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, data []byte) (context.Context, []byte, error) {
	return ctx, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, []byte, error) {}

func (NoopHook) OnError(context.Context, string, []byte, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, string, []byte) (context.Context, []byte, error)
	After  func(context.Context, string, []byte, error)
	Err    func(context.Context, string, []byte, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, data []byte) (context.Context, []byte, error) {
	if h.Before == nil {
		return ctx, data, nil
	}
	return h.Before(ctx, topic, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, data []byte, err error) {
	if h.After != nil {
		h.After(ctx, topic, data, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, topic string, data []byte, err error) {
	if h.Err != nil {
		h.Err(ctx, topic, data, err)
	}
}
