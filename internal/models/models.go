package models

import (
	"time"

	"github.com/google/uuid"
)

type RitualKind string

const (
	KindMorning         RitualKind = "morning"
	KindEvening         RitualKind = "evening"
	KindWeeklyChallenge RitualKind = "weekly_challenge"
	KindWeeklyGoals     RitualKind = "weekly_goals"
	KindFridayCycle     RitualKind = "friday_cycle"
)

type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomePartial   Outcome = "partial"
	OutcomeText      Outcome = "text"
)

type UserStatus string

const (
	StatusPending UserStatus = "pending"
	StatusActive  UserStatus = "active"
	StatusBanned  UserStatus = "banned"
)

type User struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	TelegramID        int64      `db:"telegram_id" json:"telegram_id"`
	Username          *string    `db:"username" json:"username,omitempty"`
	FirstName         *string    `db:"first_name" json:"first_name,omitempty"`
	Status            UserStatus `db:"status" json:"status"`
	IsPremium         bool       `db:"is_premium" json:"is_premium"`
	SubscriptionUntil *time.Time `db:"subscription_until" json:"subscription_until,omitempty"`
	IsInGroup         bool       `db:"is_in_group" json:"is_in_group"`
	JoinedGroupAt     *time.Time `db:"joined_group_at" json:"joined_group_at,omitempty"`
	WarnedAt          *time.Time `db:"warned_at" json:"-"`
	ReportHour        int        `db:"report_hour" json:"report_hour"`
	ReportMinute      int        `db:"report_minute" json:"report_minute"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// RitualDefinition is one entry of the ritual catalog. ResponseButtons holds
// the JSON-encoded []ResponseOption, same layout the admin API accepts.
type RitualDefinition struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Kind                 RitualKind `db:"kind" json:"kind"`
	Cadence              Cadence    `db:"cadence" json:"cadence"`
	SendHour             int        `db:"send_hour" json:"send_hour"`
	SendMinute           int        `db:"send_minute" json:"send_minute"`
	Weekday              *int       `db:"weekday" json:"weekday,omitempty"` // 0=Monday .. 6=Sunday
	Title                string     `db:"title" json:"title"`
	Body                 string     `db:"body" json:"body"`
	ResponseButtons      string     `db:"response_buttons" json:"response_buttons"`
	Active               bool       `db:"active" json:"active"`
	RequiresSubscription bool       `db:"requires_subscription" json:"requires_subscription"`
	SortOrder            int        `db:"sort_order" json:"sort_order"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

type ResponseOption struct {
	Label   string  `json:"label"`
	Token   string  `json:"token"`
	Outcome Outcome `json:"outcome"`
}

// UserRitualState is the per-(user, ritual) row: last dispatch plus
// cumulative counters. TotalResponses covers every outcome; completed and
// skipped additionally bump their own counters.
type UserRitualState struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	RitualID       uuid.UUID  `db:"ritual_id" json:"ritual_id"`
	LastSentAt     *time.Time `db:"last_sent_at" json:"last_sent_at,omitempty"`
	TimezoneOffset int        `db:"timezone_offset" json:"timezone_offset"`
	Enabled        bool       `db:"enabled" json:"enabled"`
	TotalSent      int        `db:"total_sent" json:"total_sent"`
	TotalResponses int        `db:"total_responses" json:"total_responses"`
	TotalCompleted int        `db:"total_completed" json:"total_completed"`
	TotalSkipped   int        `db:"total_skipped" json:"total_skipped"`
}

// RitualTarget pairs a state row with its owning user for dispatch.
type RitualTarget struct {
	State UserRitualState
	User  User
}

// RitualResponse is append-only; counters are derived from it, never the
// other way around.
type RitualResponse struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserRitualID  uuid.UUID  `db:"user_ritual_id" json:"user_ritual_id"`
	RitualID      uuid.UUID  `db:"ritual_id" json:"ritual_id"`
	Outcome       Outcome    `db:"outcome" json:"outcome"`
	ResponseText  *string    `db:"response_text" json:"response_text,omitempty"`
	ButtonClicked *string    `db:"button_clicked" json:"button_clicked,omitempty"`
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	RespondedAt   time.Time  `db:"responded_at" json:"responded_at"`
}

type ActivityType string

const (
	ActivityMessage  ActivityType = "message"
	ActivityPhoto    ActivityType = "photo"
	ActivityVideo    ActivityType = "video"
	ActivityVoice    ActivityType = "voice"
	ActivityDocument ActivityType = "document"
	ActivitySticker  ActivityType = "sticker"
	ActivityPoll     ActivityType = "poll"
	ActivityReply    ActivityType = "reply"
	ActivityForward  ActivityType = "forward"
)

type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// ChatActivity is one raw chat event, recorded as it happens.
type ChatActivity struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	UserID        uuid.UUID    `db:"user_id" json:"user_id"`
	ChatID        int64        `db:"chat_id" json:"chat_id"`
	MessageID     *int         `db:"message_id" json:"message_id,omitempty"`
	Type          ActivityType `db:"activity_type" json:"activity_type"`
	MessageLength int          `db:"message_length" json:"message_length"`
	ActivityDate  time.Time    `db:"activity_date" json:"activity_date"`
	ActivityHour  int          `db:"activity_hour" json:"activity_hour"`
	IsReply       bool         `db:"is_reply" json:"is_reply"`
	IsForward     bool         `db:"is_forward" json:"is_forward"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// UserActivity is the derived per-period summary; safe to regenerate from
// raw ChatActivity rows at any time.
type UserActivity struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	PeriodType     Period    `db:"period_type" json:"period_type"`
	PeriodDate     time.Time `db:"period_date" json:"period_date"`
	TotalMessages  int       `db:"total_messages" json:"total_messages"`
	TextMessages   int       `db:"text_messages" json:"text_messages"`
	MediaMessages  int       `db:"media_messages" json:"media_messages"`
	TotalChars     int       `db:"total_characters" json:"total_characters"`
	RepliesSent    int       `db:"replies_sent" json:"replies_sent"`
	ForwardsSent   int       `db:"forwards_sent" json:"forwards_sent"`
	MostActiveHour *int      `db:"most_active_hour" json:"most_active_hour,omitempty"`
	ActivityScore  int       `db:"activity_score" json:"activity_score"`
	PeriodRank     *int      `db:"period_rank" json:"period_rank,omitempty"`
}

// TopUser is a leaderboard line in the weekly report.
type TopUser struct {
	UserID        uuid.UUID `json:"user_id"`
	TelegramID    int64     `json:"telegram_id"`
	Username      *string   `json:"username,omitempty"`
	FirstName     *string   `json:"first_name,omitempty"`
	TotalMessages int       `json:"total_messages"`
	ActivityScore int       `json:"activity_score"`
	Rank          int       `json:"rank"`
}

type WeeklyReport struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	WeekStart       time.Time  `db:"week_start" json:"week_start"`
	WeekEnd         time.Time  `db:"week_end" json:"week_end"`
	TopUsers        string     `db:"top_users" json:"top_users"`               // JSON []TopUser
	ConnectingUsers string     `db:"connecting_users" json:"connecting_users"` // JSON []TopUser
	Participants    int        `db:"participants" json:"participants"`
	ActiveCount     int        `db:"active_count" json:"active_count"`
	ActivityPercent int        `db:"activity_percent" json:"activity_percent"`
	Message         string     `db:"message" json:"message"`
	IsPublished     bool       `db:"is_published" json:"is_published"`
	PublishedAt     *time.Time `db:"published_at" json:"published_at,omitempty"`
}

type ReportStatus string

const (
	ReportPending ReportStatus = "pending"
	ReportSent    ReportStatus = "sent"
	ReportMissed  ReportStatus = "missed"
)

// ReportRequest is one day's free-text check-in request for one user.
type ReportRequest struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	UserID      uuid.UUID    `db:"user_id" json:"user_id"`
	ReportDate  time.Time    `db:"report_date" json:"report_date"`
	Status      ReportStatus `db:"status" json:"status"`
	Text        *string      `db:"report_text" json:"-"` // encrypted at rest
	RequestedAt time.Time    `db:"requested_at" json:"requested_at"`
	SubmittedAt *time.Time   `db:"submitted_at" json:"submitted_at,omitempty"`
}
