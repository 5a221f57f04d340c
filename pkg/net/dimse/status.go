package dimse

import "fmt"

// Status is the (0000,0900) value of a response.
type Status uint16

const (
	StatusSuccess                Status = 0x0000
	StatusPending                Status = 0xFF00
	StatusPendingWarning         Status = 0xFF01
	StatusCancel                 Status = 0xFE00
	StatusWarning                Status = 0xB000
	StatusProcessingFailure      Status = 0x0110
	StatusNoSuchSOPClass         Status = 0x0122
	StatusUnrecognizedOperation  Status = 0x0211
	StatusOutOfResources         Status = 0xA700
	StatusMoveDestinationUnknown Status = 0xA801
	StatusDataSetMismatch        Status = 0xA900
	StatusUnableToProcess        Status = 0xC000
)

func (s Status) IsSuccess() bool { return s == StatusSuccess }

func (s Status) IsPending() bool { return s == StatusPending || s == StatusPendingWarning }

func (s Status) IsCancel() bool { return s == StatusCancel }

func (s Status) IsWarning() bool {
	return s&0xF000 == 0xB000 || s == 0x0001 || s == 0x0107 || s == 0x0116
}

// IsFailure covers the failure classes 0xAxxx, 0xCxxx and the 0x01xx/0x02xx
// service errors.
func (s Status) IsFailure() bool {
	switch {
	case s.IsSuccess(), s.IsPending(), s.IsCancel(), s.IsWarning():
		return false
	}
	return true
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending, StatusPendingWarning:
		return "pending"
	case StatusCancel:
		return "cancel"
	case StatusUnrecognizedOperation:
		return "unrecognized operation"
	case StatusNoSuchSOPClass:
		return "no such SOP class"
	case StatusOutOfResources:
		return "out of resources"
	case StatusDataSetMismatch:
		return "data set does not match SOP class"
	case StatusUnableToProcess:
		return "unable to process"
	case StatusProcessingFailure:
		return "processing failure"
	}
	if s.IsWarning() {
		return "warning"
	}
	return "failure"
}

// StatusError reports a failed DIMSE response.
type StatusError struct {
	Field   CommandField
	Status  Status
	Comment string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s failed: %s (status: 0x%04X)", e.Field, e.Status, uint16(e.Status))
	if e.Comment != "" {
		msg += ": " + e.Comment
	}
	return msg
}
