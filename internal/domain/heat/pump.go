package heat

import "github.com/turtacn/ProcSynth/pkg/errors"

// placePump locates the cascade intervals coupled by a heat pump. Delivered
// heat is available below the outlet temperature; absorbed heat is taken from
// the band directly above the inlet temperature.
func placePump(temps []float64, spec PumpSpec) (*PumpPlacement, error) {
	n := len(temps)
	out := indexOf(temps, spec.Outlet)
	in := indexOf(temps, spec.Inlet)
	if out < 0 || in < 0 {
		return nil, errors.New(errors.ErrCodeInvalidHeatPump, "heat pump temperatures are not on the grid")
	}
	sink, source := out+1, in
	if sink > n-1 || source < 1 {
		return nil, errors.New(errors.ErrCodeInvalidHeatPump, "heat pump window must lie strictly inside the temperature grid").
			WithDetailf("inlet=%g outlet=%g", spec.Inlet, spec.Outlet)
	}
	return &PumpPlacement{Sink: sink, Source: source}, nil
}

// PumpDuty splits delivered heat into the electricity it consumes and the
// heat it absorbs for a coefficient of performance cop.
func PumpDuty(delivered, cop float64) (electricity, absorbed float64) {
	if cop <= 0 {
		return 0, 0
	}
	electricity = delivered / cop
	return electricity, delivered - electricity
}
