package event

// Topics published on the external bus.
const (
	TypeControlLeft    = "bci.control.left"
	TypeControlRight   = "bci.control.right"
	TypeObservation    = "bci.ssvep.observation"
	TypeTrialStarted   = "bci.trial.started"
	TypeTrialCompleted = "bci.trial.completed"
	TypeSessionSummary = "bci.session.summary"
	TypeFrame          = "bci.frame"
)

// Filters for the common subscriber groups.
var (
	ControlTopics = []string{"bci.control.*"}
	TrialTopics   = []string{"bci.trial.*", TypeSessionSummary}
	AllTopics     = []string{"bci.*"}
)

// ControlPayload accompanies a blink-derived control event.
type ControlPayload struct {
	Direction string  `json:"direction"`
	Channel   string  `json:"channel"`
	Excursion float64 `json:"excursion"`
	Threshold float64 `json:"threshold"`
}

// ChannelObservation is one channel's share of a reducer flush.
type ChannelObservation struct {
	Channel    string    `json:"channel"`
	PeakToPeak float64   `json:"p2p"`
	Samples    []float64 `json:"samples,omitempty"`
}

// ObservationPayload carries one lateralized reducer flush.
type ObservationPayload struct {
	Side      string               `json:"side"`
	Frequency int                  `json:"frequency"`
	Index     int                  `json:"index"`
	Recovered bool                 `json:"recovered,omitempty"`
	Processed string               `json:"processed"`
	Mirrored  string               `json:"mirrored"`
	Delta     float64              `json:"delta"`
	Verdict   string               `json:"verdict"`
	Channels  []ChannelObservation `json:"channels"`
}

// TrialPayload is published when a trial starts and when it completes.
// Counts and shares are zero on start.
type TrialPayload struct {
	Trial         int     `json:"trial"`
	Trials        int     `json:"trials"`
	Side          string  `json:"side"`
	Left          int     `json:"left"`
	Right         int     `json:"right"`
	Indeterminate int     `json:"indeterminate"`
	Correct       float64 `json:"correct"`
	Incorrect     float64 `json:"incorrect"`
	IndetShare    float64 `json:"indeterminate_share"`
}

// SummaryPayload holds every trial result and the session averages.
type SummaryPayload struct {
	Trials        []TrialPayload `json:"trials"`
	Correct       float64        `json:"correct"`
	Incorrect     float64        `json:"incorrect"`
	Indeterminate float64        `json:"indeterminate"`
}
