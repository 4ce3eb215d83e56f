// Package telegram implements the messenger interface on top of the Bot
// API. Contexts are accepted for interface symmetry; the underlying client
// is synchronous.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"clubbot/internal/messenger"
)

type Client struct {
	bot       *tgbotapi.BotAPI
	channelID string
	logger    *zap.Logger
}

func NewClient(token, channelID string, logger *zap.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Client{bot: bot, channelID: channelID, logger: logger}, nil
}

func (c *Client) SendMessage(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SendWithButtons(_ context.Context, chatID int64, text string, buttons []messenger.Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data)))
	}
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SendToGroup(_ context.Context, groupID int64, text string) error {
	msg := tgbotapi.NewMessage(groupID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send to group %d: %w", groupID, err)
	}
	return nil
}

// CheckChannelMembership reports whether the user still follows the club
// channel. Left/kicked count as out; everything else counts as in.
func (c *Client) CheckChannelMembership(_ context.Context, userID int64) (bool, error) {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: c.channelID,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member %d: %w", userID, err)
	}
	switch member.Status {
	case "left", "kicked":
		return false, nil
	}
	return true, nil
}

func (c *Client) RemoveFromGroup(_ context.Context, groupID, userID int64) error {
	_, err := c.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: groupID,
			UserID: userID,
		},
	})
	if err != nil {
		return fmt.Errorf("ban %d from %d: %w", userID, groupID, err)
	}
	c.logger.Info("removed user from group", zap.Int64("user_id", userID), zap.Int64("group_id", groupID))
	return nil
}

// RestoreToGroup lifts a previous ban so the user can follow an invite
// link back in.
func (c *Client) RestoreToGroup(_ context.Context, groupID, userID int64) error {
	_, err := c.bot.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: groupID,
			UserID: userID,
		},
		OnlyIfBanned: true,
	})
	if err != nil {
		return fmt.Errorf("unban %d in %d: %w", userID, groupID, err)
	}
	return nil
}
