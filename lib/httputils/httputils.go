package httputils

import (
	"net/http"
	"strconv"

	"github.com/laonet/laocoord/lib/errors"
)

var (
	ErrorsToStatus = map[uint]int{
		errors.InvalidEnvelope.Code:          http.StatusBadRequest,
		errors.UnauthorizedSender.Code:       http.StatusForbidden,
		errors.UnknownWitnessMessage.Code:    http.StatusNotFound,
		errors.UnknownConsensusInstance.Code: http.StatusNotFound,
		errors.ChannelUnavailable.Code:       http.StatusServiceUnavailable,
		errors.UnsupportedMessageType.Code:   http.StatusBadRequest,
		errors.DuplicatedMessage.Code:        http.StatusConflict,
		errors.InvalidMessageData.Code:       http.StatusBadRequest,
		errors.InvalidChannel.Code:           http.StatusBadRequest,
		errors.InvalidMessageID.Code:         http.StatusBadRequest,

		errors.OrganizationNotFound.Code:      http.StatusNotFound,
		errors.OrganizationAlreadyExists.Code: http.StatusConflict,
		errors.InvalidOrganization.Code:       http.StatusBadRequest,

		errors.ConsensusNodeNotFound.Code:      http.StatusNotFound,
		errors.ConsensusInstanceFinished.Code:  http.StatusConflict,
		errors.ConsensusInstanceDuplicate.Code: http.StatusConflict,
		errors.ConflictingResponse.Code:        http.StatusConflict,

		errors.PendingActionNotFound.Code:  http.StatusNotFound,
		errors.InvalidThresholdPolicy.Code: http.StatusBadRequest,

		errors.NotSubscribed.Code:     http.StatusBadRequest,
		errors.AlreadySubscribed.Code: http.StatusConflict,

		errors.StorageRecordDoesNotExist.Code: http.StatusNotFound,
		errors.BadRequestParameter.Code:       http.StatusBadRequest,
	}
)

// StatusCode maps err to a http status; unknown errors are internal ones.
func StatusCode(err error) int {
	if e, ok := err.(*errors.Error); ok {
		if status, found := ErrorsToStatus[e.Code]; found {
			return status
		}
	}

	return http.StatusInternalServerError
}

func codeString(code uint) string {
	return strconv.FormatUint(uint64(code), 10)
}
