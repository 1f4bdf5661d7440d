package cosim

// Domain names one side of the coupling. Origin is always sequenced first.
type Domain int

const (
	Origin Domain = iota
	Destination
)

func (d Domain) String() string {
	if d == Destination {
		return "destination"
	}
	return "origin"
}

// Index is the domain index understood by the coupling utility.
func (d Domain) Index() int { return int(d) }

// DomainPair holds one value per domain.
type DomainPair[T any] struct {
	Origin      T
	Destination T
}

func (p DomainPair[T]) Get(d Domain) T {
	if d == Destination {
		return p.Destination
	}
	return p.Origin
}

func (p *DomainPair[T]) Set(d Domain, v T) {
	if d == Destination {
		p.Destination = v
		return
	}
	p.Origin = v
}

// Each calls fn for the origin, then the destination.
func (p DomainPair[T]) Each(fn func(Domain, T)) {
	fn(Origin, p.Origin)
	fn(Destination, p.Destination)
}

// Integration is the time integration family of a domain.
type Integration int

const (
	Implicit Integration = iota
	Explicit
)

func (i Integration) String() string {
	if i == Explicit {
		return "explicit"
	}
	return "implicit"
}

// ClassifyNewmarkBeta selects the explicit path for a beta of exactly zero.
func ClassifyNewmarkBeta(beta float64) Integration {
	if beta == 0.0 {
		return Explicit
	}
	return Implicit
}

type initState int

const (
	uninitialized initState = iota
	ready
)
