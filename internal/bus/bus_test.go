package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmit_DeliversInOrder(t *testing.T) {
	b := New(nil)
	var got []string
	b.On(FocusView, func(p any) { got = append(got, "first:"+p.(string)) })
	b.On(FocusView, func(p any) { got = append(got, "second:"+p.(string)) })
	b.On(SelectionChanged, func(any) { got = append(got, "wrong signal") })

	n := b.Emit(FocusView, "T1")

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first:T1", "second:T1"}, got)
}

func TestSubscription_CloseReleases(t *testing.T) {
	b := New(nil)
	count := 0
	sub := b.On(SelectionChanged, func(any) { count++ })
	assert.Equal(t, 1, b.Handlers(SelectionChanged))

	b.Emit(SelectionChanged, nil)
	sub.Close()
	sub.Close()
	b.Emit(SelectionChanged, nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, b.Handlers(SelectionChanged))
}

func TestEmit_HandlerMayUnsubscribeItself(t *testing.T) {
	b := New(nil)
	count := 0
	var sub *Subscription
	sub = b.On(FocusView, func(any) {
		count++
		sub.Close()
	})
	other := 0
	b.On(FocusView, func(any) { other++ })

	b.Emit(FocusView, "T1")
	b.Emit(FocusView, "T2")

	assert.Equal(t, 1, count)
	assert.Equal(t, 2, other)
}

func TestEmit_NoHandlers(t *testing.T) {
	b := New(nil)
	assert.Equal(t, 0, b.Emit(FocusView, "T1"))
}
