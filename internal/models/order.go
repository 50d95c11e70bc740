package models

type Order struct {
	ID          string `json:"id"`
	Contact     string `json:"contact"`
	ContactName string `json:"contactName"`
	OrderType   string `json:"orderType"` // delivery, pickup, eat-in
	Summary     string `json:"summary"`
	Address     string `json:"address,omitempty"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	LegacyID    string `json:"legacyId,omitempty"`
}
