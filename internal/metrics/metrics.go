package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	SwapsAnalyzed      Counter
	SwapsDegenerate    Counter
	SwapsSkipped       Counter
	PositionsOpened    Counter
	PositionsClosed    Counter
	NoPositionSells    Counter
	ExitSignals        Counter
	EventsUnrecognized Counter
	PublishFailed      Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		SwapsAnalyzed:      n,
		SwapsDegenerate:    n,
		SwapsSkipped:       n,
		PositionsOpened:    n,
		PositionsClosed:    n,
		NoPositionSells:    n,
		ExitSignals:        n,
		EventsUnrecognized: n,
		PublishFailed:      n,
	}
}
