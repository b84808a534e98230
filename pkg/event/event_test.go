package event_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/storefront/pkg/event"
)

func TestFireReachesListeners(t *testing.T) {
	var bus event.Bus[string]
	var got []string

	bus.Listen(func(s string) { got = append(got, "a:"+s) })
	off := bus.Listen(func(s string) { got = append(got, "b:"+s) })
	assert.Equal(t, 2, bus.Len())

	bus.Fire("x")
	assert.ElementsMatch(t, []string{"a:x", "b:x"}, got)

	off()
	got = nil
	bus.Fire("y")
	assert.Equal(t, []string{"a:y"}, got)
}

func TestFireAsync(t *testing.T) {
	var bus event.Bus[int]
	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	sum := 0
	for i := 0; i < 2; i++ {
		bus.Listen(func(n int) {
			defer wg.Done()
			mu.Lock()
			sum += n
			mu.Unlock()
		})
	}
	bus.FireAsync(5)
	wg.Wait()
	assert.Equal(t, 10, sum)
}

func TestFlush(t *testing.T) {
	var bus event.Bus[int]
	bus.Listen(func(int) { t.Fatal("flushed listener called") })
	bus.Flush()
	bus.Fire(1)
	assert.Equal(t, 0, bus.Len())
}
