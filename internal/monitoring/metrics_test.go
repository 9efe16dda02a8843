package monitoring

import (
	"sync"
	"testing"
)

func TestGet_ConcurrentFirstUse(t *testing.T) {
	const n = 16
	got := make([]*Metrics, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get()
		}(i)
	}
	wg.Wait()

	for i, m := range got {
		if m == nil || m != got[0] {
			t.Fatalf("Get %d returned a different instance", i)
		}
	}
	if Init() != got[0] {
		t.Error("Init after Get must return the same instance")
	}
}
