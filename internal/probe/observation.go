package probe

import "github.com/shopspring/decimal"

// Observation is one recorded spin: the amount won and the balance after it.
type Observation struct {
	WinAmount      decimal.Decimal
	CurrentBalance decimal.Decimal
}

// ObservationSet holds observations in call order.
type ObservationSet []Observation

func (s ObservationSet) First() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[0], true
}

func (s ObservationSet) Last() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[len(s)-1], true
}
