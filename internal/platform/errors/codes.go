// Package errors provides structured error handling with HTTP mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound          Code = "SESSION_NOT_FOUND"
	CodeSessionInvalidStatus     Code = "SESSION_INVALID_STATUS"
	CodeSessionStatusRegression  Code = "SESSION_STATUS_REGRESSION"
	CodeSessionAlreadyActive     Code = "SESSION_ALREADY_ACTIVE"
	CodeSessionMissingInviteCode Code = "SESSION_MISSING_INVITE_CODE"

	// Participant errors
	CodeParticipantInvalidRole    Code = "PARTICIPANT_INVALID_ROLE"
	CodeParticipantEmptyUserID    Code = "PARTICIPANT_EMPTY_USER_ID"
	CodeParticipantEmptySessionID Code = "PARTICIPANT_EMPTY_SESSION_ID"

	// Round errors
	CodeRoundEmptySessionID Code = "ROUND_EMPTY_SESSION_ID"
	CodeRoundInvalidNumber  Code = "ROUND_INVALID_NUMBER"
	CodeRoundEmptyTopic     Code = "ROUND_EMPTY_TOPIC"

	// Matchmaking errors
	CodeMatchmakingUnavailable Code = "MATCHMAKING_UNAVAILABLE"
	CodeJoinConflict           Code = "JOIN_CONFLICT"

	// Auth errors
	CodeAuthRequired Code = "AUTH_REQUIRED"
	CodeAuthInvalid  Code = "AUTH_INVALID"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionInvalidStatus,
		CodeParticipantInvalidRole,
		CodeParticipantEmptyUserID,
		CodeParticipantEmptySessionID,
		CodeRoundEmptySessionID,
		CodeRoundInvalidNumber,
		CodeRoundEmptyTopic:
		return http.StatusBadRequest

	case CodeAuthRequired, CodeAuthInvalid:
		return http.StatusUnauthorized

	case CodeSessionNotFound, CodeNotFound:
		return http.StatusNotFound

	case CodeSessionStatusRegression,
		CodeSessionAlreadyActive,
		CodeSessionMissingInviteCode,
		CodeJoinConflict:
		return http.StatusConflict

	case CodeMatchmakingUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
