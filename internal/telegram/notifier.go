package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifyTrade(symbol, action string, price float64, qty int64, agents string) {
	emoji := "🟢"
	if action == "SELL" {
		emoji = "🔴"
	}
	msg := fmt.Sprintf("%s *%s* %s\nЦена: %.2f ₽\nЛоты: %d\nЗа: %s",
		emoji, action, symbol, price, qty, agents)
	n.send(msg)
}

func (n *Notifier) NotifyEmergencyStop(symbol string, qty int64, reason string) {
	msg := fmt.Sprintf("🚨 *Аварийный выход* %s\nЛоты: %d\n%s", symbol, qty, reason)
	n.send(msg)
}

func (n *Notifier) NotifyCycle(cycleID string, analyzed, proposed, executed int, dryRun bool) {
	mode := "live"
	if dryRun {
		mode = "dry run"
	}
	msg := fmt.Sprintf("📊 *Цикл завершён* (%s)\nТикеров: %d\nПредложено: %d\nИсполнено: %d\nID: `%s`",
		mode, analyzed, proposed, executed, cycleID)
	n.send(msg)
}

func (n *Notifier) NotifyError(context string, err error) {
	msg := fmt.Sprintf("⚠️ *Ошибка* [%s]\n%v", context, err)
	n.send(msg)
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
