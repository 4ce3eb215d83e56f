package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

func RunMigrations(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    telegram_id BIGINT UNIQUE NOT NULL,
    username TEXT,
    first_name TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    is_premium BOOLEAN NOT NULL DEFAULT false,
    subscription_until TIMESTAMPTZ,
    is_in_group BOOLEAN NOT NULL DEFAULT false,
    joined_group_at TIMESTAMPTZ,
    warned_at TIMESTAMPTZ,
    report_hour INTEGER NOT NULL DEFAULT 21,
    report_minute INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rituals (
    id UUID PRIMARY KEY,
    kind TEXT NOT NULL,
    cadence TEXT NOT NULL,
    send_hour INTEGER NOT NULL CHECK (send_hour BETWEEN 0 AND 23),
    send_minute INTEGER NOT NULL CHECK (send_minute BETWEEN 0 AND 59),
    weekday INTEGER CHECK (weekday BETWEEN 0 AND 6),
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    response_buttons TEXT NOT NULL DEFAULT '[]',
    active BOOLEAN NOT NULL DEFAULT true,
    requires_subscription BOOLEAN NOT NULL DEFAULT false,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(kind, title)
);

CREATE TABLE IF NOT EXISTS user_rituals (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    ritual_id UUID NOT NULL REFERENCES rituals(id) ON DELETE CASCADE,
    last_sent_at TIMESTAMPTZ,
    timezone_offset INTEGER NOT NULL DEFAULT 3,
    enabled BOOLEAN NOT NULL DEFAULT true,
    total_sent INTEGER NOT NULL DEFAULT 0,
    total_responses INTEGER NOT NULL DEFAULT 0,
    total_completed INTEGER NOT NULL DEFAULT 0,
    total_skipped INTEGER NOT NULL DEFAULT 0,
    UNIQUE(user_id, ritual_id)
);

CREATE TABLE IF NOT EXISTS ritual_responses (
    id UUID PRIMARY KEY,
    user_ritual_id UUID NOT NULL REFERENCES user_rituals(id) ON DELETE CASCADE,
    ritual_id UUID NOT NULL REFERENCES rituals(id) ON DELETE CASCADE,
    outcome TEXT NOT NULL,
    response_text TEXT,
    button_clicked TEXT,
    sent_at TIMESTAMPTZ,
    responded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_activities (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    chat_id BIGINT NOT NULL,
    message_id INTEGER,
    activity_type TEXT NOT NULL,
    message_length INTEGER NOT NULL DEFAULT 0,
    activity_date DATE NOT NULL,
    activity_hour INTEGER NOT NULL,
    is_reply BOOLEAN NOT NULL DEFAULT false,
    is_forward BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_activities_user_date ON chat_activities(user_id, activity_date);

CREATE TABLE IF NOT EXISTS user_activities (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    period_type TEXT NOT NULL,
    period_date DATE NOT NULL,
    total_messages INTEGER NOT NULL DEFAULT 0,
    text_messages INTEGER NOT NULL DEFAULT 0,
    media_messages INTEGER NOT NULL DEFAULT 0,
    total_characters INTEGER NOT NULL DEFAULT 0,
    replies_sent INTEGER NOT NULL DEFAULT 0,
    forwards_sent INTEGER NOT NULL DEFAULT 0,
    most_active_hour INTEGER,
    activity_score INTEGER NOT NULL DEFAULT 0,
    period_rank INTEGER,
    UNIQUE(user_id, period_type, period_date)
);

CREATE TABLE IF NOT EXISTS weekly_reports (
    id UUID PRIMARY KEY,
    week_start DATE NOT NULL,
    week_end DATE NOT NULL,
    top_users TEXT NOT NULL DEFAULT '[]',
    connecting_users TEXT NOT NULL DEFAULT '[]',
    participants INTEGER NOT NULL DEFAULT 0,
    active_count INTEGER NOT NULL DEFAULT 0,
    activity_percent INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT '',
    is_published BOOLEAN NOT NULL DEFAULT false,
    published_at TIMESTAMPTZ,
    UNIQUE(week_start)
);

CREATE TABLE IF NOT EXISTS report_requests (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    report_date DATE NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    report_text TEXT,
    requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    submitted_at TIMESTAMPTZ,
    UNIQUE(user_id, report_date)
);

CREATE TABLE IF NOT EXISTS admins (
    id SERIAL PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := db.ExecContext(context.Background(), schema)
	if err != nil {
		return err
	}

	alters := `
DO $$ BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='users' AND column_name='warned_at'
    ) THEN
        ALTER TABLE users ADD COLUMN warned_at TIMESTAMPTZ;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='rituals' AND column_name='requires_subscription'
    ) THEN
        ALTER TABLE rituals ADD COLUMN requires_subscription BOOLEAN NOT NULL DEFAULT false;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='user_activities' AND column_name='period_rank'
    ) THEN
        ALTER TABLE user_activities ADD COLUMN period_rank INTEGER;
    END IF;
END $$;`
	_, err = db.ExecContext(context.Background(), alters)
	return err
}
