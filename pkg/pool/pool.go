// Object pools for reducing GC pressure in hot paths
//
// The encoder frame parser and the report server allocate short-lived
// vectors and status maps on every sample; pooling keeps the
// steady-state paths allocation-free.

package pool

import (
	"sync"
)

// Axis vector pool - for 6-element position/unit vectors
var vectorPool = sync.Pool{
	New: func() any {
		v := make([]float64, 6)
		return &v
	},
}

// GetVector gets a zeroed 6-element float vector from the pool
func GetVector() []float64 {
	v := *vectorPool.Get().(*[]float64)
	for i := range v {
		v[i] = 0
	}
	return v
}

// PutVector returns a vector to the pool
func PutVector(v []float64) {
	if len(v) != 6 {
		return
	}
	vectorPool.Put(&v)
}

// StatusMap pool - for report snapshots
var statusMapPool = sync.Pool{
	New: func() any {
		return make(map[string]any, 16)
	},
}

// GetStatusMap gets a status map from the pool
func GetStatusMap() map[string]any {
	return statusMapPool.Get().(map[string]any)
}

// PutStatusMap returns a status map to the pool after clearing it
func PutStatusMap(m map[string]any) {
	if m == nil {
		return
	}
	clear(m)
	statusMapPool.Put(m)
}
