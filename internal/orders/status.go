package orders

type Status string

const (
	StatusReserved  Status = "reserved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// reserved -> reserved adalah edit (self-loop); paid & cancelled terminal.
var validNext = map[Status]map[Status]bool{
	StatusReserved:  {StatusReserved: true, StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// AcceptsProofs: proofs boleh diupload selama order belum dibatalkan.
func (s Status) AcceptsProofs() bool {
	return s == StatusReserved || s == StatusPaid
}
