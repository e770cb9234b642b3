// ABOUTME: Write access to Gmail and Google Calendar: send an email, create an event
// ABOUTME: Drafts are validated before any token or network use; replies carry a spoken-style confirmation

package integrations

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/2389/vox-gateway/internal/metrics"
)

// ErrInvalidDraft is returned for an email or event that cannot be sent as given.
var ErrInvalidDraft = errors.New("invalid draft")

// DefaultEventLength applies when an event draft has no end.
const DefaultEventLength = time.Hour

// EmailDraft is a plain-text message to send from the user's mailbox.
type EmailDraft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SentEmail identifies a message Gmail accepted.
type SentEmail struct {
	ID           string `json:"id"`
	ThreadID     string `json:"thread_id,omitempty"`
	Confirmation string `json:"confirmation"`
}

// EventDraft is a timed event for the user's primary calendar.
type EventDraft struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// CreatedEvent is the stored event plus a confirmation sentence.
type CreatedEvent struct {
	Event
	Confirmation string `json:"confirmation"`
}

func (d *EmailDraft) validate() error {
	if strings.ContainsAny(d.To, "\r\n") || strings.ContainsAny(d.Subject, "\r\n") {
		return fmt.Errorf("%w: header values may not contain line breaks", ErrInvalidDraft)
	}
	if strings.TrimSpace(d.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidDraft)
	}
	if _, err := mail.ParseAddressList(d.To); err != nil {
		return fmt.Errorf("%w: recipient: %v", ErrInvalidDraft, err)
	}
	if strings.TrimSpace(d.Subject) == "" && strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("%w: subject or body is required", ErrInvalidDraft)
	}
	return nil
}

// raw renders the draft as an RFC 5322 message in Gmail's base64url form.
func (d *EmailDraft) raw() string {
	var b strings.Builder
	b.WriteString("To: " + d.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", d.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(d.Body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// SendEmail sends draft from the user's Gmail account.
func (s *Service) SendEmail(ctx context.Context, userID string, draft EmailDraft) (*SentEmail, error) {
	if err := draft.validate(); err != nil {
		return nil, err
	}

	p, _ := Lookup(ProviderGmail)
	opts, err := s.clientOptions(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sent, err := sendMessage(ctx, opts, draft.raw())
	metrics.CollaboratorDuration.WithLabelValues("gmail", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("gmail send failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: gmail: %v", ErrUnavailable, err)
	}

	s.logger.Info("email sent", "user_id", userID, "message_id", sent.Id)
	return &SentEmail{
		ID:           sent.Id,
		ThreadID:     sent.ThreadId,
		Confirmation: fmt.Sprintf("Email sent successfully to %s with subject %q", draft.To, draft.Subject),
	}, nil
}

func sendMessage(ctx context.Context, opts []option.ClientOption, raw string) (*gmail.Message, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail client: %w", err)
	}
	msg, err := svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return msg, nil
}

func (d *EventDraft) validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if d.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidDraft)
	}
	if d.End.IsZero() {
		d.End = d.Start.Add(DefaultEventLength)
	}
	if !d.End.After(d.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidDraft)
	}
	for _, a := range d.Attendees {
		if _, err := mail.ParseAddress(a); err != nil {
			return fmt.Errorf("%w: attendee %q: %v", ErrInvalidDraft, a, err)
		}
	}
	return nil
}

// CreateEvent adds draft to the user's primary calendar. Attendees are
// invited by Google.
func (s *Service) CreateEvent(ctx context.Context, userID string, draft EventDraft) (*CreatedEvent, error) {
	if err := draft.validate(); err != nil {
		return nil, err
	}

	p, _ := Lookup(ProviderCalendar)
	opts, err := s.clientOptions(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ev, err := insertEvent(ctx, opts, &draft)
	metrics.CollaboratorDuration.WithLabelValues("calendar", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("calendar insert failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: calendar: %v", ErrUnavailable, err)
	}

	s.logger.Info("calendar event created", "user_id", userID, "event_id", ev.ID)
	return &CreatedEvent{
		Event: *ev,
		Confirmation: fmt.Sprintf("Calendar event %q created successfully for %s",
			draft.Title, draft.Start.Format("Monday, January 2 at 3:04 PM")),
	}, nil
}

func insertEvent(ctx context.Context, opts []option.ClientOption, d *EventDraft) (*Event, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar client: %w", err)
	}

	item := &calendar.Event{
		Summary:     d.Title,
		Description: d.Description,
		Location:    d.Location,
		Start:       &calendar.EventDateTime{DateTime: d.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: d.End.Format(time.RFC3339)},
	}
	for _, a := range d.Attendees {
		item.Attendees = append(item.Attendees, &calendar.EventAttendee{Email: a})
	}

	call := svc.Events.Insert("primary", item).Context(ctx)
	if len(item.Attendees) > 0 {
		call = call.SendUpdates("all")
	}
	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return toEvent(created)
}
