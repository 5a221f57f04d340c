package assoc

import "fmt"

// State of an association.
type State int32

const (
	Idle State = iota
	TransportConnecting
	AwaitingAssociationResponse
	AwaitingAssociationRequest
	// WaitingOnData is the acceptor state between sending A-ASSOCIATE-AC and
	// the first P-DATA-TF.
	WaitingOnData
	Open
	Closing
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case TransportConnecting:
		return "TRANSPORT_CONNECTING"
	case AwaitingAssociationResponse:
		return "AWAITING_ASSOCIATION_RESPONSE"
	case AwaitingAssociationRequest:
		return "AWAITING_ASSOCIATION_REQUEST"
	case WaitingOnData:
		return "ASSOCIATION_ESTABLISHED_WAITING_ON_DATA"
	case Open:
		return "TRANSPORT_CONNECTION_OPEN"
	case Closing:
		return "CLOSING_ASSOCIATION"
	case Closed:
		return "CLOSED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(s))
}

// Established reports whether messages may flow.
func (s State) Established() bool {
	return s == WaitingOnData || s == Open
}

// Role is the side of the association a peer plays.
type Role int

const (
	Requester Role = iota
	Acceptor
)

func (r Role) String() string {
	if r == Acceptor {
		return "acceptor"
	}
	return "requester"
}

// Transition is reported to state change observers.
type Transition struct {
	From, To State
}
