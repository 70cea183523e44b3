package fitproc

// Default window size (in samples) for moving-average speed smoothing.
const speedSmoothingWindow = 5

type distanceSample struct {
	recordIndex int
	timestamp   float64
	distance    float64
}

type derivedWorkoutData struct {
	summary WorkoutSummary
	// Smoothed speed/distance values aligned to the data record index,
	// populated only when smoothing is enabled.
	overrides []recordOverride
}

// deriveWorkoutData computes summary metrics and per-record override values
// from decoded records. Speeds are always derived from distance deltas rather
// than encoded speed fields, so the metrics stay correct when speed fields
// are absent or removed.
func deriveWorkoutData(records []Record, opts Options) derivedWorkoutData {
	var (
		timestamps  []float64
		heartRates  []float64
		samples     []distanceSample
		workoutType *string
		haveWorkout bool
	)

	for idx, record := range records {
		var timestamp, distance *float64
		for _, field := range record.Fields {
			switch field.Name {
			case "timestamp":
				if field.Numeric != nil {
					timestamp = field.Numeric
					timestamps = append(timestamps, *field.Numeric)
				}
			case "distance":
				if field.Numeric != nil {
					distance = field.Numeric
				}
			case "heart_rate":
				if field.Numeric != nil {
					heartRates = append(heartRates, *field.Numeric)
				}
			case "sport", "workout_type":
				if !haveWorkout && field.Value != "" {
					v := field.Value
					workoutType = &v
					haveWorkout = true
				}
			}
		}
		if timestamp != nil && distance != nil {
			samples = append(samples, distanceSample{
				recordIndex: idx,
				timestamp:   *timestamp,
				distance:    *distance,
			})
		}
	}

	out := derivedWorkoutData{overrides: make([]recordOverride, len(records))}
	out.summary.WorkoutType = workoutType
	out.summary.DurationSeconds = timestampSpan(timestamps)

	intervals := make([]float64, 0, len(samples))
	for i := 1; i < len(samples); i++ {
		dt := samples[i].timestamp - samples[i-1].timestamp
		if dt < 0 {
			dt = 0
		}
		intervals = append(intervals, dt)
	}

	speeds := distanceBasedSpeeds(samples)
	if opts.SmoothSpeed {
		speeds = smoothSeries(speeds, speedSmoothingWindow)
	}

	var distanceSeries []float64
	if opts.SmoothSpeed {
		distanceSeries = reconstructDistanceSeries(samples, speeds, intervals)
	} else {
		distanceSeries = make([]float64, 0, len(samples))
		for _, s := range samples {
			distanceSeries = append(distanceSeries, s.distance)
		}
	}

	if len(distanceSeries) > 0 {
		last := distanceSeries[len(distanceSeries)-1]
		out.summary.DistanceMeters = &last
	}

	var positive []float64
	for _, v := range speeds {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	out.summary.SpeedMin = minOf(positive)
	out.summary.SpeedMax = maxOf(positive)
	out.summary.SpeedMean = meanSpeed(samples, distanceSeries, speeds)

	out.summary.HeartRateMin = minOf(heartRates)
	out.summary.HeartRateMax = maxOf(heartRates)
	out.summary.HeartRateMean = meanOf(heartRates)

	if opts.SmoothSpeed {
		// Smoothed interval speed i belongs to the sample that starts the
		// interval, so the last sample keeps its encoded speed. Distances
		// align one to one.
		for i := range speeds {
			v := speeds[i]
			out.overrides[samples[i].recordIndex].speed = &v
		}
		for i, sample := range samples {
			if i < len(distanceSeries) {
				v := distanceSeries[i]
				out.overrides[sample.recordIndex].distance = &v
			}
		}
	}

	return out
}

// distanceBasedSpeeds calculates per-interval speeds from distance deltas.
// Negative deltas count as zero movement, and a non-positive time delta
// yields speed zero.
func distanceBasedSpeeds(samples []distanceSample) []float64 {
	speeds := make([]float64, 0, len(samples))
	for i := 1; i < len(samples); i++ {
		dt := samples[i].timestamp - samples[i-1].timestamp
		dd := samples[i].distance - samples[i-1].distance
		if dt > 0 {
			if dd < 0 {
				dd = 0
			}
			speeds = append(speeds, dd/dt)
		} else {
			speeds = append(speeds, 0)
		}
	}
	return speeds
}

// smoothSeries applies a centered moving average. The window shrinks at the
// series boundaries instead of padding.
func smoothSeries(values []float64, windowSize int) []float64 {
	if windowSize == 0 || len(values) == 0 {
		return values
	}
	radius := windowSize / 2
	out := make([]float64, len(values))
	for i := range values {
		start := i - radius
		if start < 0 {
			start = 0
		}
		end := i + radius + 1
		if end > len(values) {
			end = len(values)
		}
		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// reconstructDistanceSeries rebuilds a distance series aligned with the
// smoothed speeds. It is monotonic non-decreasing by construction and starts
// at the first sample's raw distance.
func reconstructDistanceSeries(samples []distanceSample, speeds, intervals []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}

	distances := make([]float64, 0, len(samples))
	distances = append(distances, samples[0].distance)

	steps := len(speeds)
	if len(intervals) < steps {
		steps = len(intervals)
	}
	for i := 0; i < steps; i++ {
		previous := distances[len(distances)-1]
		next := previous + speeds[i]*intervals[i]
		if next < previous {
			next = previous
		}
		distances = append(distances, next)
	}

	for len(distances) < len(samples) {
		distances = append(distances, distances[len(distances)-1])
	}
	return distances
}

func timestampSpan(timestamps []float64) *float64 {
	if len(timestamps) == 0 {
		return nil
	}
	min, max := timestamps[0], timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts < min {
			min = ts
		}
		if ts > max {
			max = ts
		}
	}
	span := max - min
	return &span
}

// meanSpeed averages the interval speeds when any exist; otherwise it falls
// back to total distance delta over total elapsed time between the first and
// last sample.
func meanSpeed(samples []distanceSample, distanceSeries, speeds []float64) *float64 {
	if len(speeds) > 0 {
		return meanOf(speeds)
	}
	if len(samples) == 0 || len(distanceSeries) == 0 {
		return nil
	}
	first := samples[0]
	dt := samples[len(samples)-1].timestamp - first.timestamp
	dd := distanceSeries[len(distanceSeries)-1] - first.distance
	if dt > 0 && dd >= 0 {
		mean := dd / dt
		return &mean
	}
	return nil
}

func minOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return &min
}

func maxOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return &max
}

func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	return &mean
}
