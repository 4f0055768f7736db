package calibration

import "testing"

func TestBucketMapping(t *testing.T) {
	cases := map[float64]int{0.0: 0, 0.05: 0, 0.15: 1, 0.95: 9, 1.0: 9}
	for p, want := range cases {
		if got := probToBucket(p); got != want {
			t.Errorf("probToBucket(%v) = %d, want %d", p, got, want)
		}
	}
}

func TestCalibrationPassthroughWithFewSamples(t *testing.T) {
	c := New()
	p := c.Calibrate(0.7)
	if diff := p - 0.7; diff > 1e-10 || diff < -1e-10 {
		t.Fatalf("should pass through with few samples, got %v", p)
	}
}

func TestPAVMonotonicity(t *testing.T) {
	c := New()
	for i := 0; i < 100; i++ {
		c.Record(0.2, false)
		c.Record(0.8, true)
	}
	for i := 0; i < numBuckets-1; i++ {
		if c.calibrated[i] > c.calibrated[i+1] {
			t.Fatalf("PAV should be monotonic: bucket %d=%v > bucket %d=%v",
				i, c.calibrated[i], i+1, c.calibrated[i+1])
		}
	}
}
