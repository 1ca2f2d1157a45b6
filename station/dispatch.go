package station

import (
	"gocheckin/authz"
	"gocheckin/indicator"
)

// Outcome codes returned by the endpoint.
const (
	CodeServerFailure       = -1
	CodeCheckInOutSuccess   = 0
	CodeCheckInOutFailure   = 2
	CodeRegistrationSuccess = 10
	CodeNoCardOnFile        = 90
	CodeDeviceInvalid       = 99
)

var feedback = map[int]indicator.Pattern{
	CodeServerFailure:       indicator.ServerFailure,
	CodeCheckInOutSuccess:   indicator.CheckInOutSuccess,
	CodeCheckInOutFailure:   indicator.CheckInOutFailure,
	CodeRegistrationSuccess: indicator.RegistrationSuccess,
	CodeNoCardOnFile:        indicator.NoCardOnFile,
	CodeDeviceInvalid:       indicator.DeviceInvalid,
}

// Feedback maps a result to its pattern. Only Code results with a known
// value have one.
func Feedback(res authz.Result) (indicator.Pattern, bool) {
	if res.Kind != authz.Code {
		return 0, false
	}
	p, ok := feedback[res.Code]
	return p, ok
}
