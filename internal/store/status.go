package store

// SaveStatus is the outcome of saving an event
type SaveStatus int

const (
	// SaveAccepted means the event and its tags were committed
	SaveAccepted SaveStatus = iota + 1
	// SaveRejectedDuplicate means an event with the same id already exists
	SaveRejectedDuplicate
)

func (s SaveStatus) String() string {
	switch s {
	case SaveAccepted:
		return "accepted"
	case SaveRejectedDuplicate:
		return "rejected: duplicate"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of an event id.
//
//	NotExistent -> Saved -> Deleted
//
// Deleted is terminal.
type Status int

const (
	StatusNotExistent Status = iota
	StatusSaved
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusNotExistent:
		return "not-existent"
	case StatusSaved:
		return "saved"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
