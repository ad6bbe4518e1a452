package model

// PushSubscription is a browser push subscription (endpoint plus keys).
type PushSubscription struct {
	SubscriptionID string               `json:"pushSubscriptionId,omitempty"`
	Endpoint       string               `json:"endpoint"`
	ExpirationTime *Date                `json:"expirationTime,omitempty"`
	Keys           PushSubscriptionKeys `json:"keys"`
}

type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

func (s PushSubscription) EntityID() string { return s.SubscriptionID }

// SameEndpoint reports whether both subscriptions point at the same push
// service endpoint with the same keys.
func (s PushSubscription) SameEndpoint(o PushSubscription) bool {
	return s.Endpoint == o.Endpoint && s.Keys == o.Keys
}
