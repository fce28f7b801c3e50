package alert

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

const telegramAPIFormat = "https://api.telegram.org/bot%s/sendMessage"

// Pause between consecutive messages so a large batch stays under the Bot
// API's per-chat rate limit.
const telegramSendSpacing = 500 * time.Millisecond

// TelegramPublisher sends one HTML-formatted message per new listing to a
// Telegram chat.
type TelegramPublisher struct {
	client *resty.Client
	url    string
	chatID string
	logger *utils.Logger
}

// NewTelegramPublisher creates a publisher for the given bot token and chat.
func NewTelegramPublisher(token, chatID string, logger *utils.Logger) *TelegramPublisher {
	return &TelegramPublisher{
		client: resty.New().SetTimeout(15 * time.Second),
		url:    fmt.Sprintf(telegramAPIFormat, token),
		chatID: chatID,
		logger: logger,
	}
}

// PublishNew sends each listing as its own message. Individual send failures
// are logged and counted, not fatal.
func (p *TelegramPublisher) PublishNew(ctx context.Context, listings []*models.Listing) error {
	var failed int
	for i, l := range listings {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(telegramSendSpacing):
			}
		}
		if err := p.send(ctx, formatMessage(l)); err != nil {
			failed++
			p.logger.Warn("[alert] Telegram send failed for %s: %v", l.ID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("telegram: %d of %d messages failed", failed, len(listings))
	}
	return nil
}

func (p *TelegramPublisher) send(ctx context.Context, text string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":                  p.chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": "false",
		}).
		Post(p.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// formatMessage renders the listing as a Telegram HTML message.
func formatMessage(l *models.Listing) string {
	title := html.EscapeString(l.Title)

	msg := fmt.Sprintf("🚗 <b>%s</b>\n", title)
	msg += fmt.Sprintf("📅 Year: %d\n", l.Year)
	msg += fmt.Sprintf("🛣 Mileage: %s km\n", groupedInt(l.MileageKm))
	msg += fmt.Sprintf("💰 Price: %s\n", currency.FormatManwon(l.PriceWon))

	if l.IsLease() {
		msg += fmt.Sprintf("📋 %s\n", l.LeaseState)
		msg += fmt.Sprintf("💸 True cost: %s\n", currency.FormatManwon(l.TrueCostWon))
		if t := l.LeaseTerms; t.Complete() {
			msg += fmt.Sprintf("   deposit %s + %s × %d months\n",
				currency.FormatManwon(t.DepositWon),
				currency.FormatManwon(t.MonthlyWon),
				t.TermMonths)
		}
	}
	if l.Views != nil {
		msg += fmt.Sprintf("👁 Views: %d", *l.Views)
		if l.Freshness == models.FreshnessVeryFresh {
			msg += " 🔥"
		}
		msg += "\n"
	}
	if l.RegistrationDate != nil {
		msg += fmt.Sprintf("🗓 Registered: %s\n", l.RegistrationDate.Format("2006/01/02"))
	}

	msg += fmt.Sprintf("🔗 <a href=\"%s\">View listing</a>", l.DetailURL)
	return msg
}

func groupedInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
