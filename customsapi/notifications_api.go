package customsapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jrsteele09/customs-console/gateway"
)

const (
	PathNotifications         = "/api/notifications/"
	PathNotificationsUnread   = "/api/notifications/unread-count"
	PathNotificationsMarkRead = "/api/notifications/mark-read"
	PathNotificationsSound    = "/api/notifications/sound"
	PathNotificationsSoundGet = "/api/notifications/sound-status"
)

// ListOptions narrows a notification listing. Zero values are omitted.
type ListOptions struct {
	UnreadOnly bool
	Skip       int
	Limit      int
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.UnreadOnly {
		q.Set("unread_only", "true")
	}
	if o.Skip > 0 {
		q.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

// NotificationsAPI wraps the /api/notifications endpoints.
type NotificationsAPI struct {
	gw *gateway.Client
}

func NewNotificationsAPI(gw *gateway.Client) *NotificationsAPI {
	return &NotificationsAPI{gw: gw}
}

func (n *NotificationsAPI) List(ctx context.Context, opts ListOptions) (*NotificationList, error) {
	var out NotificationList
	if err := n.gw.Get(ctx, PathNotifications, &out, gateway.WithQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

func (n *NotificationsAPI) UnreadCount(ctx context.Context) (int, error) {
	var out UnreadCountResponse
	if err := n.gw.Get(ctx, PathNotificationsUnread, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead marks ids as read. Passing no ids marks everything.
func (n *NotificationsAPI) MarkRead(ctx context.Context, ids ...int64) error {
	return n.gw.Post(ctx, PathNotificationsMarkRead, MarkReadRequest{NotificationIDs: ids}, nil)
}

func (n *NotificationsAPI) MarkOneRead(ctx context.Context, id int64) error {
	return n.gw.Post(ctx, fmt.Sprintf("/api/notifications/%d/read", id), nil, nil)
}

func (n *NotificationsAPI) Delete(ctx context.Context, id int64) error {
	return n.gw.Delete(ctx, fmt.Sprintf("/api/notifications/%d", id), nil)
}

func (n *NotificationsAPI) DeleteAll(ctx context.Context) error {
	return n.gw.Delete(ctx, PathNotifications, nil)
}

func (n *NotificationsAPI) SetSound(ctx context.Context, enabled bool) error {
	return n.gw.Post(ctx, PathNotificationsSound, SoundRequest{Enabled: enabled}, nil)
}

// SoundStatus is a background read; its failures are not shown.
func (n *NotificationsAPI) SoundStatus(ctx context.Context) (bool, error) {
	var out SoundStatusResponse
	if err := n.gw.Get(ctx, PathNotificationsSoundGet, &out, gateway.Quiet()); err != nil {
		return false, err
	}
	return out.Enabled, nil
}
