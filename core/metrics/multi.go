package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordForecast forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordForecast(ev ForecastEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordForecast(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordDispatch forwards gated decisions.
func (m *MultiSink) RecordDispatch(ev DispatchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DispatchRecorder); ok {
			if err := rec.RecordDispatch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAnomaly forwards anomalies.
func (m *MultiSink) RecordAnomaly(ev AnomalyEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AnomalyRecorder); ok {
			if err := rec.RecordAnomaly(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordGeneration forwards generation requests.
func (m *MultiSink) RecordGeneration(ev GenerationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(GenerationRecorder); ok {
			if err := rec.RecordGeneration(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCycle forwards cycle summaries.
func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CycleRecorder); ok {
			if err := rec.RecordCycle(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
