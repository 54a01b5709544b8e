package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderAlert      NotificationType = "order_alert"
	NotificationTypePayoutAlert     NotificationType = "payout_alert"
	NotificationTypeShippingUpdate  NotificationType = "shipping_update"
	NotificationTypeSettlementAlert NotificationType = "settlement_alert"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderAlert,
	NotificationTypePayoutAlert,
	NotificationTypeShippingUpdate,
	NotificationTypeSettlementAlert,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
