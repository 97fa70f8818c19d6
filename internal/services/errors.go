package services

import (
	"errors"
	"net/http"
)

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrProjectNotApproved   = errors.New("project not approved")
	ErrCannotVoteOwnProject = errors.New("cannot vote for own project")
	ErrUserNotFound         = errors.New("user not found")
	ErrVoteConflict         = errors.New("concurrent vote conflict")
	ErrInvalidIdentity      = errors.New("identity carries neither user nor visitor id")
	ErrCounterDrift         = errors.New("vote count out of sync with vote rows")
	ErrVotingClosed         = errors.New("voting is closed")

	ErrSubmissionClosed = errors.New("submission deadline has passed")
	ErrForbidden        = errors.New("forbidden")
	ErrBootcampNotFound = errors.New("bootcamp not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrBadCredentials   = errors.New("invalid username or password")
	ErrWrongPassword    = errors.New("current password does not match")
)

// 投票错误码，对外暴露给客户端
const (
	CodeProjectNotFound      = "PROJECT_NOT_FOUND"
	CodeProjectNotApproved   = "PROJECT_NOT_APPROVED"
	CodeCannotVoteOwnProject = "CANNOT_VOTE_OWN_PROJECT"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeVoteConflict         = "VOTE_CONFLICT"
	CodeInvalidIdentity      = "INVALID_IDENTITY"
	CodeVotingClosed         = "VOTING_CLOSED"
	CodeVoteFailed           = "VOTE_FAILED"
)

type voteError struct {
	code    string
	status  int
	message string
}

var voteErrors = []struct {
	err error
	voteError
}{
	{ErrProjectNotFound, voteError{CodeProjectNotFound, http.StatusNotFound, "项目不存在"}},
	{ErrProjectNotApproved, voteError{CodeProjectNotApproved, http.StatusForbidden, "项目尚未通过审核"}},
	{ErrCannotVoteOwnProject, voteError{CodeCannotVoteOwnProject, http.StatusForbidden, "不能给自己的项目投票"}},
	{ErrUserNotFound, voteError{CodeUserNotFound, http.StatusNotFound, "用户不存在"}},
	{ErrVoteConflict, voteError{CodeVoteConflict, http.StatusConflict, "投票冲突，请重试"}},
	{ErrInvalidIdentity, voteError{CodeInvalidIdentity, http.StatusBadRequest, "无法识别投票身份"}},
	{ErrVotingClosed, voteError{CodeVotingClosed, http.StatusForbidden, "投票已截止"}},
}

var voteFailed = voteError{CodeVoteFailed, http.StatusInternalServerError, "投票失败，请稍后再试"}

func lookupVoteError(err error) voteError {
	for _, ve := range voteErrors {
		if errors.Is(err, ve.err) {
			return ve.voteError
		}
	}
	return voteFailed
}

// VoteErrorCode maps an engine error to its wire code. Unknown errors are VOTE_FAILED.
func VoteErrorCode(err error) string {
	return lookupVoteError(err).code
}

// VoteErrorStatus returns the HTTP status and user-facing message for err.
func VoteErrorStatus(err error) (int, string) {
	ve := lookupVoteError(err)
	return ve.status, ve.message
}
