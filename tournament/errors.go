package tournament

import "errors"

var (
	ErrInvalidDocument = errors.New("invalid tournament document")
	ErrInvalidResult   = errors.New("result must be 0, 0.5, 1 or null")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrUnknownTeam     = errors.New("unknown team")
	ErrTeamFull        = errors.New("team is full")
	ErrMatchRange      = errors.New("match index out of range")
	ErrSlotRange       = errors.New("slot index out of range")
	ErrHoleRange       = errors.New("hole number out of range")
	ErrInvalidMatchup  = errors.New("players must be on opposing teams")
	ErrPlayerBusy      = errors.New("player is already in a match")
	ErrHoleTracked     = errors.New("match is scored hole by hole")
	ErrCaptainInMatch  = errors.New("a non-playing captain is placed in a match")
)
