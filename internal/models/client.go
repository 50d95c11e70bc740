package models

import (
	"strings"
	"time"
)

type Client struct {
	ContactID         string       `json:"contact"`
	Name              string       `json:"name"`
	WhatsAppName      string       `json:"whatsAppName"`
	Email             string       `json:"email,omitempty"`
	IsWhatsAppContact bool         `json:"isWAContact"`
	IsSavedContact    bool         `json:"isMyContact"`
	IsEnterprise      bool         `json:"isEnterprise"`
	IsBusiness        bool         `json:"isBusiness"`
	Source            string       `json:"source"` // chatbot, manual
	Labels            string       `json:"labels"` // comma-joined
	CreatedAt         int64        `json:"createdAt"`
	UpdatedAt         int64        `json:"updatedAt"`
	Interactions      Interactions `json:"interactions"`
	Fee               int64        `json:"fee"`
}

// Interactions counts contacts per channel.
type Interactions struct {
	WhatsApp           int64 `json:"whatsapp"`
	Controller         int64 `json:"controller"`
	Chatbot            int64 `json:"chatbot"`
	API                int64 `json:"api"`
	Campaign           int64 `json:"campaign"`
	Client             int64 `json:"client"`
	Other              int64 `json:"other"`
	WhatsAppController int64 `json:"whatsappController"`
	AI                 int64 `json:"ai"`
}

// Add increments the counter for channel. Unknown channels count as other.
func (i *Interactions) Add(channel string, n int64) {
	switch channel {
	case ChannelWhatsApp:
		i.WhatsApp += n
	case ChannelController:
		i.Controller += n
	case ChannelChatbot:
		i.Chatbot += n
	case ChannelAPI:
		i.API += n
	case ChannelCampaign:
		i.Campaign += n
	case ChannelClient:
		i.Client += n
	case ChannelWhatsAppController:
		i.WhatsAppController += n
	case ChannelAI:
		i.AI += n
	default:
		i.Other += n
	}
}

// ByChannel returns the counters keyed by channel name.
func (i Interactions) ByChannel() map[string]int64 {
	return map[string]int64{
		ChannelWhatsApp:           i.WhatsApp,
		ChannelController:         i.Controller,
		ChannelChatbot:            i.Chatbot,
		ChannelAPI:                i.API,
		ChannelCampaign:           i.Campaign,
		ChannelClient:             i.Client,
		ChannelOther:              i.Other,
		ChannelWhatsAppController: i.WhatsAppController,
		ChannelAI:                 i.AI,
	}
}

// Total sums all channels.
func (i Interactions) Total() int64 {
	var total int64
	for _, v := range i.ByChannel() {
		total += v
	}
	return total
}

// Fee prices the counters with a per-channel table.
func (i Interactions) Fee(pricing map[string]int64) int64 {
	var fee int64
	for channel, count := range i.ByChannel() {
		fee += count * pricing[channel]
	}
	return fee
}

// LabelSet splits the comma-joined labels, trimming blanks.
func (c *Client) LabelSet() []string {
	var out []string
	for _, l := range strings.Split(c.Labels, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Classification returns vip, corporate or regular from the label set.
func (c *Client) Classification() string {
	for _, l := range c.LabelSet() {
		switch strings.ToLower(l) {
		case LabelVIP:
			return LabelVIP
		case LabelCorporate:
			return LabelCorporate
		}
	}
	return LabelRegular
}

func (c *Client) Created() time.Time {
	return time.UnixMilli(c.CreatedAt)
}
