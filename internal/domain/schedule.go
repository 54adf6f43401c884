package domain

import "time"

// WeeklyWindow is an open interval on one weekday, in minutes after local midnight.
type WeeklyWindow struct {
	Weekday     time.Weekday `json:"weekday" bson:"weekday" validate:"gte=0,lte=6"`
	StartMinute int          `json:"startMinute" bson:"startMinute" validate:"gte=0,lt=1440"`
	EndMinute   int          `json:"endMinute" bson:"endMinute" validate:"gtfield=StartMinute,lte=1440"`
}

// Schedule is a coach's recurring one-to-one availability.
type Schedule struct {
	SessionDurationMinutes int            `json:"sessionDurationMinutes" bson:"sessionDurationMinutes" validate:"required,gte=5,lte=480"`
	TimeZone               string         `json:"timeZone,omitempty" bson:"timeZone,omitempty" validate:"omitempty,timezone"`
	UTCOffsetMinutes       int            `json:"utcOffsetMinutes,omitempty" bson:"utcOffsetMinutes,omitempty" validate:"gte=-840,lte=840"`
	Windows                []WeeklyWindow `json:"windows" bson:"windows" validate:"required,min=1,dive"`
}

// SessionDuration returns the configured length of one session.
func (s *Schedule) SessionDuration() time.Duration {
	return time.Duration(s.SessionDurationMinutes) * time.Minute
}

// BookedTime is a booked sub-slot inside an availability window.
type BookedTime struct {
	ID            string    `json:"id" bson:"id"`
	ParticipantID string    `json:"participantId" bson:"participantId"`
	StartTime     time.Time `json:"startTime" bson:"startTime"`
	EndTime       time.Time `json:"endTime" bson:"endTime"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// AvailabilityTime is one concrete occurrence of a weekly window.
type AvailabilityTime struct {
	ID             string       `json:"id" bson:"_id"`
	ContributionID string       `json:"contributionId" bson:"contributionId"`
	StartTime      time.Time    `json:"startTime" bson:"startTime"`
	EndTime        time.Time    `json:"endTime" bson:"endTime"`
	BookedTimes    []BookedTime `json:"bookedTimes" bson:"bookedTimes"`
}

// SlotResponse is a bookable interval returned to clients.
type SlotResponse struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// BookSlotRequest is the validated input for booking a slot.
type BookSlotRequest struct {
	StartTime time.Time `json:"startTime" validate:"required"`
}
