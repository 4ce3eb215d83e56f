package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"clubbot/internal/models"
	"clubbot/internal/report"
	"clubbot/internal/ritual"
	"clubbot/internal/store"
)

const welcomeText = "Добро пожаловать в клуб! 💪 Я буду присылать тебе утренние и вечерние ритуалы и напоминать об отчётах."

// Updater consumes bot updates and routes them: button presses to the
// ritual recorder, group messages to the activity log, private text to the
// daily report.
type Updater struct {
	client    *Client
	store     *store.Store
	recorder  *ritual.Recorder
	reports   *report.Service
	logger    *zap.Logger
	groupID   int64
	refOffset int
}

func NewUpdater(c *Client, s *store.Store, rec *ritual.Recorder, rep *report.Service, logger *zap.Logger, groupID int64, refOffset int) *Updater {
	return &Updater{
		client:    c,
		store:     s,
		recorder:  rec,
		reports:   rep,
		logger:    logger,
		groupID:   groupID,
		refOffset: refOffset,
	}
}

// Run blocks until the context is cancelled.
func (u *Updater) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := u.client.bot.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			u.client.bot.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			u.handleUpdate(ctx, &upd)
		}
	}
}

func (u *Updater) handleUpdate(ctx context.Context, upd *tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		u.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		u.handleMessage(ctx, upd.Message)
	}
}

func (u *Updater) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	cb, err := ritual.ParseCallback(q.Data)
	if err != nil {
		return
	}
	outcome, err := u.recorder.RecordButton(ctx, cb, time.Now())
	if err != nil {
		u.logger.Error("record button", zap.String("data", q.Data), zap.Error(err))
		return
	}
	ack := "Записано ✅"
	if outcome == models.OutcomeSkipped {
		ack = "Понял, в другой раз 👌"
	}
	if _, err := u.client.bot.Request(tgbotapi.NewCallback(q.ID, ack)); err != nil {
		u.logger.Warn("answer callback", zap.Error(err))
	}
}

func (u *Updater) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.Chat.ID == u.groupID:
		u.trackGroupMessage(ctx, msg)
	case msg.Chat.IsPrivate():
		u.handlePrivateMessage(ctx, msg)
	}
}

func classify(msg *tgbotapi.Message) (models.ActivityType, int) {
	switch {
	case len(msg.Photo) > 0:
		return models.ActivityPhoto, len(msg.Caption)
	case msg.Video != nil:
		return models.ActivityVideo, len(msg.Caption)
	case msg.Voice != nil:
		return models.ActivityVoice, 0
	case msg.Document != nil:
		return models.ActivityDocument, len(msg.Caption)
	case msg.Sticker != nil:
		return models.ActivitySticker, 0
	case msg.Poll != nil:
		return models.ActivityPoll, 0
	default:
		return models.ActivityMessage, len(msg.Text)
	}
}

func (u *Updater) trackGroupMessage(ctx context.Context, msg *tgbotapi.Message) {
	if len(msg.NewChatMembers) > 0 {
		u.trackJoins(ctx, msg.NewChatMembers)
		return
	}
	if msg.From == nil {
		return
	}
	member, err := u.store.UserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			u.logger.Error("load member", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		}
		return
	}

	typ, length := classify(msg)
	local := msg.Time().UTC().Add(time.Duration(u.refOffset) * time.Hour)
	msgID := msg.MessageID
	act := &models.ChatActivity{
		UserID:        member.ID,
		ChatID:        msg.Chat.ID,
		MessageID:     &msgID,
		Type:          typ,
		MessageLength: length,
		ActivityDate:  time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
		ActivityHour:  local.Hour(),
		IsReply:       msg.ReplyToMessage != nil,
		IsForward:     msg.ForwardFrom != nil || msg.ForwardFromChat != nil,
	}
	if err := u.store.InsertActivity(ctx, act); err != nil {
		u.logger.Error("track activity", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
	}
}

func (u *Updater) trackJoins(ctx context.Context, joined []tgbotapi.User) {
	now := time.Now()
	for i := range joined {
		member, err := u.store.UserByTelegramID(ctx, joined[i].ID)
		if err != nil {
			continue
		}
		if err := u.store.MarkRejoined(ctx, member.ID, now); err != nil {
			u.logger.Error("mark rejoined", zap.Int64("telegram_id", joined[i].ID), zap.Error(err))
		}
	}
}

func (u *Updater) handlePrivateMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}
	if strings.HasPrefix(msg.Text, "/start") {
		u.handleStart(ctx, msg)
		return
	}
	if cb, ok := ritualStateFromReply(msg); ok {
		if err := u.recorder.RecordText(ctx, cb.StateID, msg.Text, time.Now()); err != nil {
			u.logger.Error("record text reply", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
			return
		}
		if err := u.client.SendMessage(ctx, msg.Chat.ID, "Записал ✅"); err != nil {
			u.logger.Warn("text reply ack", zap.Error(err))
		}
		return
	}

	member, err := u.store.UserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return
	}
	if err := u.reports.Submit(ctx, member.ID, msg.Text, time.Now()); err != nil {
		u.logger.Error("submit report", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		return
	}
	if err := u.client.SendMessage(ctx, msg.Chat.ID, "Отчёт принят ✅"); err != nil {
		u.logger.Warn("report ack", zap.Error(err))
	}
}

// ritualStateFromReply recovers the ritual state a quoted prompt belongs
// to. Prompts carry the state id in their button callback data, and
// Telegram echoes the inline keyboard back on the quoted message.
func ritualStateFromReply(msg *tgbotapi.Message) (*ritual.Callback, bool) {
	quoted := msg.ReplyToMessage
	if quoted == nil || quoted.ReplyMarkup == nil {
		return nil, false
	}
	for _, row := range quoted.ReplyMarkup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData == nil {
				continue
			}
			if cb, err := ritual.ParseCallback(*btn.CallbackData); err == nil {
				return cb, true
			}
		}
	}
	return nil, false
}

func (u *Updater) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	member, err := u.store.UserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, store.ErrNotFound) {
		member = &models.User{
			TelegramID: msg.From.ID,
			Status:     models.StatusPending,
			ReportHour: 21,
		}
		if msg.From.UserName != "" {
			member.Username = &msg.From.UserName
		}
		if msg.From.FirstName != "" {
			member.FirstName = &msg.From.FirstName
		}
		if err := u.store.CreateUser(ctx, member); err != nil {
			u.logger.Error("create user", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
			return
		}
	} else if err != nil {
		u.logger.Error("load user", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		return
	}

	if err := u.store.RegisterUserRituals(ctx, member.ID, u.refOffset); err != nil {
		u.logger.Error("register rituals", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
	}
	if err := u.client.SendMessage(ctx, msg.Chat.ID, welcomeText); err != nil {
		u.logger.Warn("welcome message", zap.Error(err))
	}
}
