package orders

import "time"

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool { return s.Valid() && len(validNext[s]) == 0 }

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", Errorf(KindInvalidStatus, "invalid status %q", s)
	}
	return st, nil
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Transition moves the order to the given status and returns the stock
// adjustments the move implies. The order is left untouched on error.
func (o *Order) Transition(to Status, at time.Time) ([]StockAdjustment, error) {
	if !to.Valid() {
		return nil, Errorf(KindInvalidStatus, "invalid status %q", to)
	}
	if !CanTransition(o.Status, to) {
		return nil, Errorf(KindInvalidTransition, "cannot move order %s from %s to %s", o.OrderNumber, o.Status, to)
	}

	from := o.Status
	o.Status = to
	o.UpdatedAt = at
	if to == StatusCompleted && o.CompletedAt == nil {
		t := at
		o.CompletedAt = &t
	}
	if to == StatusCancelled && from != StatusCancelled {
		return o.adjustments(1), nil
	}
	return nil, nil
}
