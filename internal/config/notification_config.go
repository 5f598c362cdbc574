package config

import "time"

const (
	notificationPollVar     = "NOTIFICATION_POLL_INTERVAL"
	notificationPageSizeVar = "NOTIFICATION_PAGE_SIZE"
)

type NotificationConfig interface {
	GetNotificationPollInterval() time.Duration
	GetNotificationPageSize() int
}

type Notification struct {
	PollInterval time.Duration `mapstructure:"NOTIFICATION_POLL_INTERVAL"`
	PageSize     int           `mapstructure:"NOTIFICATION_PAGE_SIZE"`
}

var _ NotificationConfig = Notification{}

func (n Notification) GetNotificationPollInterval() time.Duration {
	return n.PollInterval
}

func (n Notification) GetNotificationPageSize() int {
	return n.PageSize
}
