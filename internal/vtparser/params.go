package vtparser

// Params is the parsed parameter list of a CSI sequence: up to maxParams
// semicolon-separated integers, each capped at maxParamValue. A slot with no
// digits is "unset" — dispatch code maps that to the operation's documented
// default rather than to zero.
type Params struct {
	values [maxParams]int
	unset  [maxParams]bool
	n      int
}

func (p *Params) reset() {
	p.n = 0
}

// Len reports how many parameter slots were seen (including unset ones).
func (p *Params) Len() int { return p.n }

// Get returns the value at slot i, or def if i is out of range or unset.
func (p *Params) Get(i, def int) int {
	if i < 0 || i >= p.n || p.unset[i] {
		return def
	}
	return p.values[i]
}

// IsUnset reports whether slot i was present but carried no digits.
func (p *Params) IsUnset(i int) bool {
	if i < 0 || i >= p.n {
		return true
	}
	return p.unset[i]
}

// digit appends a decimal digit to the current (last) slot, starting one if
// none exists yet. Returns false if the slot has overflowed maxParamValue.
func (p *Params) digit(d int) bool {
	if p.n == 0 {
		p.n = 1
		p.unset[0] = true
	}
	i := p.n - 1
	if p.unset[i] {
		p.unset[i] = false
		p.values[i] = 0
	}
	p.values[i] = p.values[i]*10 + d
	return p.values[i] <= maxParamValue
}

// next advances to the next parameter slot. Returns false if the parameter
// list is already full (caller should enter CsiIgnore).
func (p *Params) next() bool {
	if p.n == 0 {
		p.n = 1
		p.unset[0] = true
	}
	if p.n >= maxParams {
		return false
	}
	p.n++
	p.unset[p.n-1] = true
	return true
}

// NewParams builds a Params directly from a list of values, all set
// (non-unset). Handlers under test use this to drive dispatch methods
// without feeding raw escape bytes through a Parser.
func NewParams(values ...int) *Params {
	p := &Params{}
	if len(values) == 0 {
		return p
	}
	if len(values) > maxParams {
		values = values[:maxParams]
	}
	p.n = len(values)
	for i, v := range values {
		p.values[i] = v
	}
	return p
}
