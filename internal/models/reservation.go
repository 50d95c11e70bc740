package models

type Reservation struct {
	ID                 string `json:"id"`
	Contact            string `json:"contact"`
	ContactNameBooking string `json:"contactNameBooking"`
	PeopleBooking      string `json:"peopleBooking"`
	FinalPeopleBooking int    `json:"finalPeopleBooking"`
	DateBooking        string `json:"dateBooking"`   // RFC3339
	StatusBooking      string `json:"statusBooking"` // pending, accepted, rejected
	DetailsBooking     string `json:"detailsBooking"`
	ReconfirmDate      string `json:"reconfirmDate,omitempty"`
	ReconfirmStatus    string `json:"reconfirmStatus,omitempty"`
	CreatedAt          int64  `json:"createdAt"`
	UpdatedAt          int64  `json:"updatedAt"`
	LegacyID           string `json:"legacyId,omitempty"`
}
