package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"

	"github.com/vostroslava/teremok-platform/internal/model"
)

// botAPI is the subset of tgbotapi.BotAPI the notifier uses; tests
// substitute a fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Telegram sends lead and test notifications to a manager chat and
// checks channel membership.
type Telegram struct {
	bot             botAPI
	managerChatID   int64
	requiredChannel string
}

// NewTelegram connects to the Bot API with the given token.
func NewTelegram(token string, managerChatID int64, requiredChannel string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, eris.Wrap(err, "notify: connect bot api")
	}
	return &Telegram{bot: bot, managerChatID: managerChatID, requiredChannel: requiredChannel}, nil
}

func (t *Telegram) LeadCaptured(_ context.Context, c *model.Contact, deduped bool) error {
	msg := tgbotapi.NewMessage(t.managerChatID, formatLead(c, deduped))
	if _, err := t.bot.Send(msg); err != nil {
		return eris.Wrap(err, "notify: send lead message")
	}
	return nil
}

func (t *Telegram) TestFinished(_ context.Context, subject int64, product, resultType string) error {
	text := fmt.Sprintf("🧪 Новый результат теста\nПродукт: %s\nПользователь: %d\nТип: %s",
		product, subject, resultType)
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.managerChatID, text)); err != nil {
		return eris.Wrap(err, "notify: send test message")
	}
	return nil
}

// IsSubscribed checks membership in the required channel. Unreachable
// API yields (false, err): the caller reports the check as failed
// instead of guessing.
func (t *Telegram) IsSubscribed(_ context.Context, userID int64) (bool, error) {
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: t.requiredChannel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, eris.Wrap(err, "notify: get chat member")
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}

func formatLead(c *model.Contact, deduped bool) string {
	var b strings.Builder
	if deduped {
		b.WriteString("🔁 Повторное обращение\n")
	} else {
		b.WriteString("🆕 Новая заявка\n")
	}
	fmt.Fprintf(&b, "Имя: %s\nРоль: %s\n", c.Name, c.Role)
	if c.Company != "" {
		fmt.Fprintf(&b, "Компания: %s\n", c.Company)
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, "Контакт: %s\n", c.Phone)
	}
	if c.Comment != "" {
		fmt.Fprintf(&b, "Комментарий: %s\n", c.Comment)
	}
	fmt.Fprintf(&b, "Продукт: %s, источник: %s", c.Product, c.Source)
	return b.String()
}
