package notifier

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"cardbridge/internal/domain/service/deal"
	"cardbridge/internal/domain/service/pricing"
	"cardbridge/pkg/logx"
)

// TelegramBot шлёт операционные уведомления о переходах сделок в чат
// дежурных. Споры и возвраты требуют внимания человека, остальные
// события идут как информационные.
type TelegramBot struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Run запускает обработку событий из канала.
func (b *TelegramBot) Run(ctx context.Context, events <-chan deal.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.SendEvent(ctx, event); err != nil {
				logger(ctx).Error("failed to send event", logx.Error(err))
			}
		}
	}
}

func (b *TelegramBot) SendEvent(ctx context.Context, event deal.Event) error {
	text := b.formatEvent(event)
	if text == "" {
		return nil
	}

	msg := tu.Message(
		tu.ID(b.chatID),
		text,
	).WithParseMode(telego.ModeHTML)

	_, err := b.bot.SendMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}

func (b *TelegramBot) formatEvent(event deal.Event) string {
	d := event.Deal

	total := "?"
	if breakdown, err := pricing.ComputeBreakdown(d.Cart, d.Terms.CommissionBps, d.Terms.PlatformFeeBps); err == nil {
		total = breakdown.Total.String()
	}

	switch event.Type {
	case deal.EventDisputeRaised:
		return fmt.Sprintf(
			"⚠️ <b>DISPUTE</b>\n\n"+
				"📋 <b>Deal:</b> %s\n"+
				"📝 <b>Title:</b> %s\n"+
				"💰 <b>In escrow:</b> %s\n"+
				"👤 <b>Seeker:</b> %s\n"+
				"💳 <b>Cardholder:</b> %s",
			d.ID, d.Title, total, d.SeekerID, d.CardholderID,
		)
	case deal.EventEscrowRefunded:
		return fmt.Sprintf(
			"↩️ <b>REFUND</b>\n\n"+
				"📋 <b>Deal:</b> %s\n"+
				"💰 <b>Returned:</b> %s\n"+
				"👤 <b>Seeker:</b> %s",
			d.ID, total, d.SeekerID,
		)
	case deal.EventFundsReleased:
		return fmt.Sprintf(
			"✅ <b>COMPLETED</b>\n\n"+
				"📋 <b>Deal:</b> %s\n"+
				"💰 <b>Released:</b> %s\n"+
				"💳 <b>Cardholder:</b> %s",
			d.ID, total, d.CardholderID,
		)
	case deal.EventDealExpired:
		return fmt.Sprintf(
			"⌛ <b>EXPIRED</b>\n\n"+
				"📋 <b>Deal:</b> %s\n"+
				"📝 <b>Title:</b> %s",
			d.ID, d.Title,
		)
	default:
		// Рутинные переходы чат дежурных не интересуют.
		return ""
	}
}
