package interview

import "errors"

var (
	ErrSessionNotFound  = errors.New("interview session not found")
	ErrSessionFinished  = errors.New("interview session already finished")
	ErrTurnInProgress   = errors.New("an answer is already being processed for this session")
	ErrStoreClosed      = errors.New("interview store is closed")
	ErrDuplicateSession = errors.New("interview session id already registered")
	ErrPersonaRequired  = errors.New("persona is required")
	ErrInvalidDuration  = errors.New("invalid interview duration")
	ErrInvalidAnomaly   = errors.New("face missing seconds must not be negative")
	ErrTranscription    = errors.New("speech recognition failed")
	ErrNoAudio          = errors.New("answer audio is empty")
)
