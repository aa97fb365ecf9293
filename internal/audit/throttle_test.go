package audit

import "testing"

func TestThrottle_NilAdmitsEverything(t *testing.T) {
	var th *Throttle
	for i := 0; i < 100; i++ {
		if !th.Allow("gate.reject") {
			t.Fatal("nil throttle must admit every record")
		}
	}
	if NewThrottle(0, 10, nil) != nil {
		t.Error("NewThrottle(0) should disable the bound")
	}
}

func TestThrottle_BoundsBursts(t *testing.T) {
	// One token per hour: only the burst is admitted within the test.
	th := NewThrottle(1.0/3600, 3, nil)
	admitted := 0
	for i := 0; i < 10; i++ {
		if th.Allow("gate.reject") {
			admitted++
		}
	}
	if admitted != 3 {
		t.Errorf("admitted = %d, want 3", admitted)
	}
}
