package client

import "time"

type ActivityType int

// Listening renders as "Listening to <name>".
const Listening ActivityType = 2

type Assets struct {
	LargeImage string `json:"large_image"`
	LargeText  string `json:"large_text,omitempty"`
}

type Timestamps struct {
	Start int64 `json:"start"`
}

type Activity struct {
	Type       ActivityType `json:"type"`
	Name       string       `json:"name"`
	Details    string       `json:"details"`
	State      string       `json:"state"`
	Timestamps *Timestamps  `json:"timestamps,omitempty"`
	Assets     *Assets      `json:"assets,omitempty"`
}

// NewListeningActivity builds a "listening" activity whose elapsed time
// starts at now. Assets are attached only when largeImage is set.
func NewListeningActivity(details, state, name, largeImage, largeText string, now time.Time) *Activity {
	act := &Activity{
		Type:       Listening,
		Name:       name,
		Details:    details,
		State:      state,
		Timestamps: &Timestamps{Start: now.Unix()},
	}
	if largeImage != "" {
		act.Assets = &Assets{LargeImage: largeImage, LargeText: largeText}
	}
	return act
}

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type command struct {
	Cmd   string       `json:"cmd"`
	Args  activityArgs `json:"args"`
	Nonce string       `json:"nonce"`
}
