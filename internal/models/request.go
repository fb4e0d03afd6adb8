package models

// SOSRequest is the payload accepted by the HTTP API and the SOS queue.
type SOSRequest struct {
	RequestID    string      `json:"request_id"`
	User         User        `json:"user"`
	Location     *Coordinate `json:"location,omitempty"`
	BatteryLevel *int        `json:"battery_level,omitempty"`
	Recipients   []Recipient `json:"recipients,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Identity returns the identity record used to compose the alert.
func (u User) Identity() Identity {
	return Identity{Name: u.Name, Phone: u.Phone}
}
