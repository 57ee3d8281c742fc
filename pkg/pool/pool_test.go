package pool

import "testing"

func TestVectorPoolZeroes(t *testing.T) {
	v := GetVector()
	if len(v) != 6 {
		t.Fatalf("len = %d, want 6", len(v))
	}
	for i := range v {
		v[i] = float64(i)
	}
	PutVector(v)

	v2 := GetVector()
	for i, x := range v2 {
		if x != 0 {
			t.Errorf("v2[%d] = %g, want 0", i, x)
		}
	}
	PutVector(v2)
}

func TestStatusMapPoolClears(t *testing.T) {
	m := GetStatusMap()
	m["velocity"] = 1.5
	PutStatusMap(m)

	m2 := GetStatusMap()
	if len(m2) != 0 {
		t.Errorf("reused map not cleared: %v", m2)
	}
	PutStatusMap(m2)
}

func TestWrongSizeNotPooled(t *testing.T) {
	// Should not panic or poison the pool
	PutVector(make([]float64, 3))
	PutStatusMap(nil)
}
