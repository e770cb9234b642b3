// ABOUTME: Read access to Gmail and Google Calendar for connected users
// ABOUTME: Uses the generated google.golang.org/api clients over an oauth2 HTTP client

package integrations

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/2389/vox-gateway/internal/metrics"
)

const (
	DefaultEmailCount  = 10
	maxEmailCount      = 50
	DefaultEventWindow = 7 * 24 * time.Hour
	maxEvents          = 50
)

// Email is a summary of one Gmail message.
type Email struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	Snippet    string    `json:"snippet"`
	ReceivedAt time.Time `json:"received_at"`
}

// Event is one calendar entry. AllDay events have midnight Start/End in UTC.
type Event struct {
	ID       string    `json:"id"`
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day"`
	Link     string    `json:"link,omitempty"`
}

func (s *Service) clientOptions(ctx context.Context, userID string, p Provider) ([]option.ClientOption, error) {
	hc, err := s.authorizedClient(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if ep := s.opts.APIEndpoints[p.ID]; ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	return opts, nil
}

// RecentEmails returns the newest messages in the user's mailbox.
func (s *Service) RecentEmails(ctx context.Context, userID string, limit int) ([]Email, error) {
	if limit <= 0 {
		limit = DefaultEmailCount
	}
	limit = min(limit, maxEmailCount)

	p, _ := Lookup(ProviderGmail)
	opts, err := s.clientOptions(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	emails, err := s.fetchEmails(ctx, opts, limit)
	metrics.CollaboratorDuration.WithLabelValues("gmail", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("gmail request failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: gmail: %v", ErrUnavailable, err)
	}
	return emails, nil
}

func (s *Service) fetchEmails(ctx context.Context, opts []option.ClientOption, limit int) ([]Email, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail client: %w", err)
	}

	list, err := svc.Users.Messages.List("me").MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	out := make([]Email, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := svc.Users.Messages.Get("me", m.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From").
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("getting message %s: %w", m.Id, err)
		}
		e := Email{
			ID:         msg.Id,
			Snippet:    msg.Snippet,
			ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
		}
		if msg.Payload != nil {
			for _, h := range msg.Payload.Headers {
				switch h.Name {
				case "Subject":
					e.Subject = h.Value
				case "From":
					e.From = h.Value
				}
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// UpcomingEvents returns primary calendar events starting within window.
func (s *Service) UpcomingEvents(ctx context.Context, userID string, window time.Duration) ([]Event, error) {
	if window <= 0 {
		window = DefaultEventWindow
	}

	p, _ := Lookup(ProviderCalendar)
	opts, err := s.clientOptions(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	events, err := s.fetchEvents(ctx, opts, window)
	metrics.CollaboratorDuration.WithLabelValues("calendar", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("calendar request failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: calendar: %v", ErrUnavailable, err)
	}
	return events, nil
}

func (s *Service) fetchEvents(ctx context.Context, opts []option.ClientOption, window time.Duration) ([]Event, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar client: %w", err)
	}

	now := s.now().UTC()
	resp, err := svc.Events.List("primary").
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(window).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	out := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := toEvent(item)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, nil
}

func toEvent(item *calendar.Event) (*Event, error) {
	ev := &Event{
		ID:       item.Id,
		Summary:  item.Summary,
		Location: item.Location,
		Link:     item.HtmlLink,
	}
	var err error
	if ev.Start, ev.AllDay, err = eventTime(item.Start); err != nil {
		return nil, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	if ev.End, _, err = eventTime(item.End); err != nil {
		return nil, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	return ev, nil
}

// eventTime reads a timed (RFC 3339) or all-day (YYYY-MM-DD) boundary.
func eventTime(t *calendar.EventDateTime) (time.Time, bool, error) {
	switch {
	case t == nil:
		return time.Time{}, false, nil
	case t.DateTime != "":
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, false, err
	case t.Date != "":
		v, err := time.Parse(time.DateOnly, t.Date)
		return v, true, err
	default:
		return time.Time{}, false, nil
	}
}
