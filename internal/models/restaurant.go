package models

type Restaurant struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Address        string           `json:"address"`
	PrimaryColor   string           `json:"primaryColor"`
	SecondaryColor string           `json:"secondaryColor"`
	Logo           string           `json:"logo,omitempty"` // URL or data:<mime>;base64,<blob>
	IsActive       bool             `json:"isActive"`
	Config         RestaurantConfig `json:"config"`
	AdminAccountID string           `json:"adminAccountId"`
	CreatedAt      int64            `json:"createdAt"`
	UpdatedAt      int64            `json:"updatedAt"`
	DeletedAt      int64            `json:"deletedAt,omitempty"`
}

type RestaurantConfig struct {
	InteractionPricing map[string]int64 `json:"interactionPricing"`
	OrderTypes         []string         `json:"orderTypes"`
	OrderStatuses      []string         `json:"orderStatuses"`
	BotSchedule        BotSchedule      `json:"botSchedule"`
}

type BotSchedule struct {
	Enabled  bool     `json:"enabled"`
	Days     []string `json:"days"`
	OpenAt   string   `json:"openAt"`  // HH:MM
	CloseAt  string   `json:"closeAt"` // HH:MM
	Timezone string   `json:"timezone"`
}

// AdminUser links an identity account to the restaurant it manages.
type AdminUser struct {
	AccountID    string `json:"accountId"`
	Email        string `json:"email"`
	RestaurantID string `json:"restaurantId"`
	Role         string `json:"role"`
	CreatedAt    int64  `json:"createdAt"`
}

// Category is a menu category provisioned for a new restaurant.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	CreatedAt int64  `json:"createdAt"`
}

// AllowsOrderType reports whether t is in the configured allow-list,
// falling back to the default list when none is configured.
func (c RestaurantConfig) AllowsOrderType(t string) bool {
	return contains(orDefault(c.OrderTypes, DefaultOrderTypes), t)
}

func (c RestaurantConfig) AllowsOrderStatus(s string) bool {
	return contains(orDefault(c.OrderStatuses, DefaultOrderStatuses), s)
}

func orDefault(list, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// NewRestaurant is the admin panel's create request: the restaurant plus
// the credentials of its first admin account.
type NewRestaurant struct {
	Restaurant    Restaurant `json:"restaurant"`
	AdminEmail    string     `json:"adminEmail"`
	AdminPassword string     `json:"adminPassword"`
}
