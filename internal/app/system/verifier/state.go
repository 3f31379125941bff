package verifier

// State is a step of the login state machine. A login moves forward through
// these in order and always ends in Finalized, whatever happened before.
type State int

const (
	Started State = iota
	ProfileResolved
	FeatureExtracted
	VoiceChecked
	PassphraseChecked
	Finalized
)

var stateNames = [...]string{
	Started:           "started",
	ProfileResolved:   "profile-resolved",
	FeatureExtracted:  "feature-extracted",
	VoiceChecked:      "voice-checked",
	PassphraseChecked: "passphrase-checked",
	Finalized:         "finalized",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
