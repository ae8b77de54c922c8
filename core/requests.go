package orchestration

// StartRequest is the body of POST /start, opening one orchestration run.
type StartRequest struct {
	Cities      []string        `json:"cities"`
	Nights      map[string]int  `json:"nights"`
	Preferences TripPreferences `json:"preferences"`
	Trip        TripDetails     `json:"trip"`
	// SessionID resumes a previous run when set.
	SessionID string `json:"sessionId,omitempty"`
}

// TripPreferences captures what the traveller cares about.
type TripPreferences struct {
	Pace        string   `json:"pace,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	Budget      string   `json:"budget,omitempty"`
	TravelStyle string   `json:"travelStyle,omitempty"`
}

// TripDetails frames the trip itself.
type TripDetails struct {
	StartDate  string `json:"startDate,omitempty"`
	EndDate    string `json:"endDate,omitempty"`
	Travellers int    `json:"travellers,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

// DeepDiveRequest is the body of POST /deep-dive, a follow-up question
// about one city answered outside the streaming channel.
type DeepDiveRequest struct {
	CityID      string `json:"cityId"`
	Topic       string `json:"topic"`
	CustomQuery string `json:"customQuery,omitempty"`
	SessionID   string `json:"sessionId"`
}

type deepDiveResponse struct {
	Response string `json:"response"`
}

// FeedbackRequest is the body of POST /feedback. Delivery is best-effort.
type FeedbackRequest struct {
	CityID     string   `json:"cityId"`
	Rating     int      `json:"rating"`
	Categories []string `json:"categories,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	SessionID  string   `json:"sessionId"`
}
