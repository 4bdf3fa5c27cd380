package polls

import "errors"

var (
	// ErrPollNotFound is returned when no poll matches the public link
	// or id. Handlers translate it into a 404.
	ErrPollNotFound = errors.New("poll not found")

	// ErrPollClosed is returned for vote attempts against an expired or
	// archived poll. Results stay viewable.
	ErrPollClosed = errors.New("poll is closed")

	// ErrAlreadyVoted is returned when the per-poll cookie marks the
	// caller as having voted.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrVoteLimit is returned when the per-IP cap is reached on a
	// poll that has the IP check enabled.
	ErrVoteLimit = errors.New("vote limit reached for this address")

	// ErrNoSelection is returned when a submission names no options.
	ErrNoSelection = errors.New("no option selected")

	// ErrInvalidOption is returned when any submitted option does not
	// belong to the poll. The whole submission is rejected.
	ErrInvalidOption = errors.New("invalid option")

	// ErrTooFewOptions is returned at creation time for fewer than two
	// usable options.
	ErrTooFewOptions = errors.New("a poll needs at least two options")

	// ErrForbidden is returned when the actor neither owns the poll nor
	// holds the admin flag.
	ErrForbidden = errors.New("forbidden")
)
