package models

// Recipient is an emergency contact. The first recipient in a list is the
// primary contact and is the only one who gets the escalation call.
type Recipient struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

// DeliveryOutcome captures the text delivery result for one recipient.
type DeliveryOutcome struct {
	Recipient Recipient `json:"recipient"`
	SMSSent   bool      `json:"sms_sent"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// DispatchReport is the result of one SOS fan-out.
type DispatchReport struct {
	EventID           string            `json:"event_id"`
	Outcomes          []DeliveryOutcome `json:"outcomes"`
	PrimaryCallPlaced bool              `json:"primary_call_placed"`
	CallReason        string            `json:"call_reason,omitempty"`
}

// SentCount returns how many recipients received the text.
func (r DispatchReport) SentCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.SMSSent {
			n++
		}
	}
	return n
}

// Delivered reports whether every recipient received the text.
func (r DispatchReport) Delivered() bool {
	return r.SentCount() == len(r.Outcomes)
}
