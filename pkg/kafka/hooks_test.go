package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChain_OrderAndPayloadThreading(t *testing.T) {
	var order []string
	upper := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before-1")
			return ctx, km, append(data, '!'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-1") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before-2")
			return ctx, km, data, nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-2") },
	}

	chain := NewHookChain(upper, nil, second)
	_, _, data, err := chain.BeforeHandle(context.Background(), "captures", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x!", string(data))

	chain.AfterHandle(context.Background(), "captures", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before-1", "before-2", "after-2", "after-1"}, order)
}

func TestHookChain_PanicBecomesHookError(t *testing.T) {
	var notified error
	chain := NewHookChain(
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { notified = err }},
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "captures", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, err, notified)
}

func TestHookChain_AfterPanicContained(t *testing.T) {
	chain := NewHookChain(HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { panic("x") }})
	assert.NotPanics(t, func() {
		chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, errors.New("e"))
		chain.OnError(context.Background(), "t", kafka.Message{}, nil, errors.New("e"))
	})
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 50*time.Millisecond, 2*time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
	d := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, d, min/2)
	assert.LessOrEqual(t, d, min)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
	_, err = NewProducer()
	assert.Error(t, err)
}
