package pricing

import "fmt"

// Static registries mapping configuration tags to constructors. Components
// are selected by tag at startup and at hot-swap time.

var volatilityBuilders = map[string]func(Params) VolatilityEstimator{
	"ewma":  func(p Params) VolatilityEstimator { return NewEWMAVolatility(p) },
	"fixed": func(p Params) VolatilityEstimator { return NewFixedVolatility(p) },
}

var reservationBuilders = map[string]func(Params) ReservationCalculator{
	"avellaneda_stoikov": func(p Params) ReservationCalculator { return NewAvellanedaStoikov(p) },
}

var skewBuilders = map[string]func(Params) SkewCalculator{
	"linear": func(p Params) SkewCalculator { return NewLinearSkew(p) },
	"none":   func(p Params) SkewCalculator { return NewNoSkew(p) },
}

var spreadBuilders = map[string]func(Params) SpreadCalculator{
	"fixed":      func(p Params) SpreadCalculator { return NewFixedSpread(p) },
	"volatility": func(p Params) SpreadCalculator { return NewVolatilitySpread(p) },
}

var sizerBuilders = map[string]func(Params) Sizer{
	"asymmetric": func(p Params) Sizer { return NewAsymmetricSizer(p) },
	"symmetric":  func(p Params) Sizer { return NewSymmetricSizer(p) },
}

func BuildVolatility(tag string, p Params) (VolatilityEstimator, error) {
	b, ok := volatilityBuilders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown volatility estimator %q", tag)
	}
	return b(p), nil
}

func BuildReservation(tag string, p Params) (ReservationCalculator, error) {
	b, ok := reservationBuilders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown reservation calculator %q", tag)
	}
	return b(p), nil
}

func BuildSkew(tag string, p Params) (SkewCalculator, error) {
	b, ok := skewBuilders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown skew calculator %q", tag)
	}
	return b(p), nil
}

func BuildSpread(tag string, p Params) (SpreadCalculator, error) {
	b, ok := spreadBuilders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown spread calculator %q", tag)
	}
	return b(p), nil
}

func BuildSizer(tag string, p Params) (Sizer, error) {
	b, ok := sizerBuilders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown sizer %q", tag)
	}
	return b(p), nil
}

// TransferState copies internal state from an old component to its
// replacement when both sides support it. Incompatible snapshots leave the
// new component at its default state.
func TransferState(from, to interface{}) {
	src, ok := from.(Stateful)
	if !ok {
		return
	}
	dst, ok := to.(Stateful)
	if !ok {
		return
	}
	snap, err := src.ExportState()
	if err != nil {
		return
	}
	_ = dst.ImportState(snap)
}
