package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PreservesOrderUnderNoOverflow(t *testing.T) {
	rb := New[int](5)
	for i := 0; i < 5; i++ {
		rb.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := rb.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := rb.Pop()
	assert.False(t, ok)
}

func Test_NewestWinsOnOverflow(t *testing.T) {
	rb := New[int](3)
	for i := 0; i < 3; i++ {
		rb.Push(i) // 0,1,2
	}
	rb.Push(3) // evicts 0, buffer now 1,2,3
	rb.Push(4) // evicts 1, buffer now 2,3,4

	assert.Equal(t, 3, rb.Len())

	for _, want := range []int{2, 3, 4} {
		v, ok := rb.Pop()
		assert.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func Test_CapacityReportedExactly(t *testing.T) {
	rb := New[string](1000)
	assert.Equal(t, 1000, rb.Cap())
}
