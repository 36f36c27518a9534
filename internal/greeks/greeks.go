// Package greeks computes closed-form option price sensitivities under a
// lognormal-volatility model, plus the put-based hedge sizer built on them.
//
// Theta is expressed per calendar day (annualized / 365) and vega per
// one percentage-point move in volatility (annualized / 100).
package greeks

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"hedge-systemv1/internal/model"
)

// ErrInvalidInput is returned for non-positive time, volatility, or prices.
// Callers can distinguish bad input from a valid zero sensitivity.
var ErrInvalidInput = errors.New("greeks: invalid pricing input")

// Calc holds the pricing inputs for one option.
type Calc struct {
	S     float64 // underlying price
	K     float64 // strike
	T     float64 // time to expiry, year fraction
	R     float64 // risk-free rate
	Sigma float64 // volatility, annualized
}

var stdNormal = distuv.UnitNormal

func (c Calc) validate() error {
	if c.S <= 0 || c.K <= 0 {
		return fmt.Errorf("%w: S=%g K=%g", ErrInvalidInput, c.S, c.K)
	}
	if c.T <= 0 {
		return fmt.Errorf("%w: T=%g", ErrInvalidInput, c.T)
	}
	if c.Sigma <= 0 {
		return fmt.Errorf("%w: sigma=%g", ErrInvalidInput, c.Sigma)
	}
	return nil
}

func (c Calc) d1() float64 {
	return (math.Log(c.S/c.K) + (c.R+0.5*c.Sigma*c.Sigma)*c.T) / (c.Sigma * math.Sqrt(c.T))
}

func (c Calc) d2(d1 float64) float64 {
	return d1 - c.Sigma*math.Sqrt(c.T)
}

// Delta returns the option delta: CDF(d1) for calls, CDF(d1)-1 for puts.
func (c Calc) Delta(kind model.OptionKind) (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	d1 := c.d1()
	if kind == model.OptionCall {
		return stdNormal.CDF(d1), nil
	}
	return stdNormal.CDF(d1) - 1, nil
}

// Gamma returns the option gamma (kind-independent).
func (c Calc) Gamma() (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	d1 := c.d1()
	return stdNormal.Prob(d1) / (c.S * c.Sigma * math.Sqrt(c.T)), nil
}

// Theta returns time decay per calendar day.
func (c Calc) Theta(kind model.OptionKind) (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	d1 := c.d1()
	d2 := c.d2(d1)
	decay := -c.S * stdNormal.Prob(d1) * c.Sigma / (2 * math.Sqrt(c.T))
	if kind == model.OptionCall {
		return (decay - c.R*c.K*math.Exp(-c.R*c.T)*stdNormal.CDF(d2)) / 365, nil
	}
	return (decay + c.R*c.K*math.Exp(-c.R*c.T)*stdNormal.CDF(-d2)) / 365, nil
}

// Vega returns sensitivity per 1-point volatility move (kind-independent).
func (c Calc) Vega() (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	d1 := c.d1()
	return c.S * stdNormal.Prob(d1) * math.Sqrt(c.T) / 100, nil
}

// All returns the full Greeks snapshot for one option kind.
func (c Calc) All(kind model.OptionKind) (model.Greeks, error) {
	delta, err := c.Delta(kind)
	if err != nil {
		return model.Greeks{}, err
	}
	gamma, _ := c.Gamma()
	theta, _ := c.Theta(kind)
	vega, _ := c.Vega()
	return model.Greeks{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega}, nil
}
