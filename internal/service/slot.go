package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/slots"
)

// maxSlotRangeDays bounds a single slot listing.
const maxSlotRangeDays = 62

// AccessResolver reports a client's access to a contribution.
type AccessResolver interface {
	ResolveAccess(ctx context.Context, clientID, contributionID string) (*domain.AccessResponse, error)
}

// SlotService manages one-to-one schedules and bookings.
type SlotService struct {
	contributions ContributionStore
	availability  AvailabilityStore
	access        AccessResolver
	validate      *validator.Validate
	log           *logrus.Entry
	now           func() time.Time
}

func NewSlotService(contributions ContributionStore, availability AvailabilityStore, access AccessResolver, log *logrus.Entry) *SlotService {
	return &SlotService{
		contributions: contributions,
		availability:  availability,
		access:        access,
		validate:      validator.New(),
		log:           log.WithField("component", "slot_service"),
		now:           time.Now,
	}
}

// SetSchedule replaces the weekly availability of a one-to-one contribution.
func (s *SlotService) SetSchedule(ctx context.Context, coachID, contributionID string, schedule *domain.Schedule) (*domain.Contribution, error) {
	if err := s.validate.Struct(schedule); err != nil {
		return nil, domain.ErrFromValidation(err)
	}
	if err := checkWindowOverlap(schedule.Windows); err != nil {
		return nil, err
	}

	c, err := s.contribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if c.UserID != coachID {
		return nil, domain.ErrForbidden("only the owner can change the schedule")
	}
	if c.Type != domain.ContributionOneToOne {
		return nil, domain.ErrBadRequest("only one-to-one contributions have a schedule")
	}

	if err := s.contributions.UpdateSchedule(ctx, contributionID, schedule); err != nil {
		return nil, domain.ErrInternal("failed to save schedule", err)
	}
	c.Schedule = schedule
	return c, nil
}

// ListSlots returns the free slots between two calendar dates, both
// inclusive. Only the dates of from and to are used; they are read as dates
// in the coach's zone.
func (s *SlotService) ListSlots(ctx context.Context, contributionID string, from, to time.Time) ([]domain.SlotResponse, error) {
	c, err := s.scheduled(ctx, contributionID)
	if err != nil {
		return nil, err
	}

	loc := slots.Location(c.Schedule)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	if to.Before(from) {
		return nil, domain.ErrBadRequest("to must not be before from")
	}
	if to.After(from.AddDate(0, 0, maxSlotRangeDays)) {
		return nil, domain.ErrBadRequest("date range is too long")
	}

	booked, err := s.availability.FindBookedBetween(ctx, contributionID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, domain.ErrInternal("failed to load bookings", err)
	}

	generated := slots.Generate(slots.Request{
		From:            from,
		To:              to,
		SessionDuration: c.Schedule.SessionDuration(),
		Windows:         c.Schedule.Windows,
		Location:        loc,
		NotBefore:       s.now(),
		Booked:          bookedIntervals(booked),
	})

	out := make([]domain.SlotResponse, 0, len(generated))
	for _, slot := range generated {
		out = append(out, domain.SlotResponse{StartTime: slot.Start, EndTime: slot.End})
	}
	return out, nil
}

// Book reserves the slot starting at req.StartTime for a client with access.
func (s *SlotService) Book(ctx context.Context, clientID, contributionID string, req *domain.BookSlotRequest) (*domain.BookedTime, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFromValidation(err)
	}
	c, err := s.scheduled(ctx, contributionID)
	if err != nil {
		return nil, err
	}

	access, err := s.access.ResolveAccess(ctx, clientID, contributionID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, domain.ErrForbidden("an active purchase is required to book sessions")
	}

	loc := slots.Location(c.Schedule)
	day := req.StartTime.In(loc)
	slot, ok := slots.Contains(slots.Request{
		From:            day,
		To:              day,
		SessionDuration: c.Schedule.SessionDuration(),
		Windows:         c.Schedule.Windows,
		Location:        loc,
		NotBefore:       s.now(),
	}, req.StartTime)
	if !ok {
		return nil, domain.ErrBadRequest("requested time is not an available slot")
	}

	// Bookings made under an earlier schedule live outside the window
	// occurrence the upsert below is guarded by.
	existing, err := s.availability.FindBookedBetween(ctx, contributionID, slot.Start, slot.End)
	if err != nil {
		return nil, domain.ErrInternal("failed to load bookings", err)
	}
	if overlapsAny(slot.Interval, existing) {
		return nil, domain.ErrConflict("slot is already booked")
	}

	booking := domain.BookedTime{
		ID:            domain.NewID(),
		ParticipantID: clientID,
		StartTime:     slot.Start.UTC(),
		EndTime:       slot.End.UTC(),
		CreatedAt:     s.now().UTC(),
	}
	booked, err := s.availability.Book(ctx, contributionID, slot.Window.Start.UTC(), slot.Window.End.UTC(), booking)
	if err != nil {
		return nil, domain.ErrInternal("failed to book slot", err)
	}
	if !booked {
		return nil, domain.ErrConflict("slot is already booked")
	}

	s.log.WithFields(logrus.Fields{
		"contribution_id": contributionID,
		"client_id":       clientID,
		"start":           booking.StartTime,
	}).Info("slot booked")
	return &booking, nil
}

func (s *SlotService) contribution(ctx context.Context, id string) (*domain.Contribution, error) {
	c, err := s.contributions.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load contribution", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound("contribution not found")
	}
	return c, nil
}

func (s *SlotService) scheduled(ctx context.Context, id string) (*domain.Contribution, error) {
	c, err := s.contribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Type != domain.ContributionOneToOne || c.Schedule == nil {
		return nil, domain.ErrBadRequest("contribution has no schedule")
	}
	return c, nil
}

func checkWindowOverlap(windows []domain.WeeklyWindow) error {
	sorted := append([]domain.WeeklyWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].StartMinute < sorted[j].StartMinute
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Weekday == cur.Weekday && cur.StartMinute < prev.EndMinute {
			return domain.ErrValidation("availability windows overlap on " + cur.Weekday.String())
		}
	}
	return nil
}

func bookedIntervals(booked []domain.BookedTime) []slots.Interval {
	out := make([]slots.Interval, 0, len(booked))
	for _, b := range booked {
		out = append(out, slots.Interval{Start: b.StartTime, End: b.EndTime})
	}
	return out
}

func overlapsAny(iv slots.Interval, booked []domain.BookedTime) bool {
	for _, b := range booked {
		if b.StartTime.Before(iv.End) && iv.Start.Before(b.EndTime) {
			return true
		}
	}
	return false
}
