// Package calibration applies pool-adjacent-violators isotonic regression
// to bucketed model predictions, recalibrating raw probabilities against
// empirically realized frequencies.
package calibration

import "btcdigital/internal/mathx"

const numBuckets = 10

// bucketCounts tracks predicted and realized observation counts for one
// probability bucket.
type bucketCounts struct {
	predicted uint64
	realized  uint64
}

// Calibrator holds ten fixed buckets over [0,1) and the monotone calibrated
// probability PAV has assigned to each.
type Calibrator struct {
	buckets    [numBuckets]bucketCounts
	calibrated [numBuckets]float64
	total      uint64
}

// New returns a Calibrator seeded with bucket midpoints as the initial
// (pass-through) calibration.
func New() *Calibrator {
	c := &Calibrator{}
	for i := range c.calibrated {
		c.calibrated[i] = (float64(i) + 0.5) / numBuckets
	}
	return c
}

func probToBucket(prob float64) int {
	idx := int(prob * numBuckets)
	if idx > numBuckets-1 {
		idx = numBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Record logs an observation: the model predicted prob, and the outcome
// was realized (true) or not. Every 20 observations, PAV is rerun.
func (c *Calibrator) Record(prob float64, realized bool) {
	bucket := probToBucket(prob)
	c.buckets[bucket].predicted++
	if realized {
		c.buckets[bucket].realized++
	}
	c.total++

	if c.total%20 == 0 {
		c.runPAV()
	}
}

// Calibrate maps a raw model probability to its calibrated bucket value.
// Passes through unchanged until 50 observations have accumulated.
func (c *Calibrator) Calibrate(prob float64) float64 {
	if c.total < 50 {
		return prob
	}
	return c.calibrated[probToBucket(prob)]
}

// CalibrationError is the mean absolute error between each bucket's
// midpoint-implied expectation and its observed realized frequency.
func (c *Calibrator) CalibrationError() float64 {
	var errSum float64
	var count int
	for i, b := range c.buckets {
		if b.predicted > 0 {
			expected := (float64(i) + 0.5) / numBuckets
			actual := float64(b.realized) / float64(b.predicted)
			d := expected - actual
			if d < 0 {
				d = -d
			}
			errSum += d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return errSum / float64(count)
}

// runPAV pools adjacent violators until the calibrated sequence is
// monotone non-decreasing, then writes the pooled means back per-bucket.
func (c *Calibrator) runPAV() {
	var values, weights [numBuckets]float64
	for i := 0; i < numBuckets; i++ {
		b := c.buckets[i]
		if b.predicted > 0 {
			values[i] = float64(b.realized) / float64(b.predicted)
			weights[i] = float64(b.predicted)
		} else {
			values[i] = (float64(i) + 0.5) / numBuckets
			weights[i] = 0.1
		}
	}

	pooledVal := values
	pooledWt := weights
	pooledLen := numBuckets
	var poolStart, poolEnd [numBuckets]int
	for i := 0; i < numBuckets; i++ {
		poolStart[i] = i
		poolEnd[i] = i
	}

	changed := true
	iterations := 0
	for changed && iterations < 100 {
		changed = false
		iterations++

		i := 0
		for i+1 < pooledLen {
			if pooledVal[i] > pooledVal[i+1] {
				newWt := pooledWt[i] + pooledWt[i+1]
				newVal := (pooledVal[i]*pooledWt[i] + pooledVal[i+1]*pooledWt[i+1]) / newWt

				pooledVal[i] = newVal
				pooledWt[i] = newWt
				poolEnd[i] = poolEnd[i+1]

				for j := i + 1; j < pooledLen-1; j++ {
					pooledVal[j] = pooledVal[j+1]
					pooledWt[j] = pooledWt[j+1]
					poolStart[j] = poolStart[j+1]
					poolEnd[j] = poolEnd[j+1]
				}
				pooledLen--
				changed = true
			} else {
				i++
			}
		}
	}

	for p := 0; p < pooledLen; p++ {
		val := mathx.Clamp(pooledVal[p], 0.001, 0.999)
		for b := poolStart[p]; b <= poolEnd[p] && b < numBuckets; b++ {
			c.calibrated[b] = val
		}
	}
}
