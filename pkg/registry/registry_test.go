package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	ID   string
	Name string
}

func TestRegistry_Register(t *testing.T) {
	r := New[testItem]()

	tests := []struct {
		name    string
		item    testItem
		wantErr bool
	}{
		{"register valid item", testItem{ID: "test-1", Name: "Test Item 1"}, false},
		{"register item with empty name", testItem{ID: "", Name: "Test Item"}, true},
		{"register duplicate item", testItem{ID: "test-1", Name: "Test Item 2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.item.ID, tt.item)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	got, ok := r.Get("test-1")
	require.True(t, ok)
	assert.Equal(t, "Test Item 1", got.Name, "duplicate must not replace the original")
}

func TestRegistry_Order(t *testing.T) {
	r := New[int]()
	for i, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, i))
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())
	assert.Equal(t, []int{0, 1, 2}, r.List())
	assert.Equal(t, 3, r.Count())

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("item-%d", i), i)
			_, _ = r.Get("item-0")
			_ = r.List()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Count())
}
