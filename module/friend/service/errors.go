package service

import "PPChat/tools/errs"

var (
	ErrSelfRequest    = errs.NewCodeError(errs.ArgsError, "cannot target yourself")
	ErrAlreadyFriends = errs.NewCodeError(errs.ConflictError, "already friends")
	ErrRequestPending = errs.NewCodeError(errs.ConflictError, "request already pending")
	ErrBlocked        = errs.NewCodeError(errs.ConflictError, "blocked")
	ErrNotPending     = errs.NewCodeError(errs.ConflictError, "request is not pending")
	ErrNotFriends     = errs.NewCodeError(errs.ConflictError, "not friends")
	ErrNotSender      = errs.NewCodeError(errs.NoPermissionError, "only the sender can cancel this request")
	ErrNotRecipient   = errs.NewCodeError(errs.NoPermissionError, "only the recipient can respond to this request")
	ErrNotParticipant = errs.NewCodeError(errs.NoPermissionError, "not a participant of this friendship")
)
