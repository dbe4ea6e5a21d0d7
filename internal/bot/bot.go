// Package bot connects the dispatcher to a WeChat account.
package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eatmoreapple/openwechat"
	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/pkg/logger"
)

// ErrUnknownUser the recipient is not a friend of the bot account
var ErrUnknownUser = errors.New("recipient is not a friend")

// mention separator WeChat puts after "@Name"
const mentionSpace = "\u2005"

// Config holds transport configuration
type Config struct {
	HotLoginFile string
	Desktop      bool
	Log          zerolog.Logger
}

// Bot a logged-in WeChat account. It implements handlers.Transport and
// alerts.Notifier.
type Bot struct {
	bot     *openwechat.Bot
	storage openwechat.HotReloadStorage
	log     zerolog.Logger

	mu   sync.RWMutex
	self *openwechat.Self
}

// New prepares the client; Login connects it
func New(cfg Config) *Bot {
	var mode openwechat.BotPreparer = openwechat.Normal
	if cfg.Desktop {
		mode = openwechat.Desktop
	}
	b := openwechat.DefaultBot(mode)

	// Register QR code callback
	b.UUIDCallback = openwechat.PrintlnQrcodeUrl

	return &Bot{
		bot:     b,
		storage: openwechat.NewFileHotReloadStorage(cfg.HotLoginFile),
		log:     logger.Component(cfg.Log, "bot"),
	}
}

// Login performs a hot login, falling back to a QR scan
func (b *Bot) Login() (models.SelfInfo, error) {
	if err := b.bot.HotLogin(b.storage, openwechat.NewRetryLoginOption()); err != nil {
		return models.SelfInfo{}, fmt.Errorf("login failed: %w", err)
	}
	self, err := b.bot.GetCurrentUser()
	if err != nil {
		return models.SelfInfo{}, fmt.Errorf("current user: %w", err)
	}

	b.mu.Lock()
	b.self = self
	b.mu.Unlock()

	info := models.SelfInfo{ID: self.UserName, Name: self.NickName}
	b.log.Info().Str("name", info.Name).Msg("Logged in")
	return info, nil
}

// Run delivers every inbound message to handle until ctx is done or the
// session ends
func (b *Bot) Run(ctx context.Context, handle func(context.Context, *models.Message)) error {
	b.bot.MessageHandler = func(raw *openwechat.Message) {
		msg, ok := b.convert(raw)
		if !ok {
			return
		}
		handle(ctx, msg)
	}

	go func() {
		<-ctx.Done()
		b.bot.Exit()
	}()

	// Block until exit
	err := b.bot.Block()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close persists the hot login session
func (b *Bot) Close() error {
	if c, ok := b.storage.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Reply answers in the chat the message came from
func (b *Bot) Reply(_ context.Context, msg *models.Message, resp models.Response) error {
	raw, ok := msg.Raw.(*openwechat.Message)
	if !ok {
		return fmt.Errorf("reply: message %s has no wechat source", msg.ID)
	}
	if text := resp.PlainText(); text != "" {
		if _, err := raw.ReplyText(text); err != nil {
			return fmt.Errorf("reply text: %w", err)
		}
	}
	if len(resp.Image) > 0 {
		if _, err := raw.ReplyImage(bytes.NewReader(resp.Image)); err != nil {
			return fmt.Errorf("reply image: %w", err)
		}
	}
	return nil
}

// SendDirect messages a friend by user name. ctx is checked between the
// blocking client calls, which take no context themselves.
func (b *Bot) SendDirect(ctx context.Context, userID string, resp models.Response) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send direct: %w", err)
	}
	b.mu.RLock()
	self := b.self
	b.mu.RUnlock()
	if self == nil {
		return errors.New("send direct: not logged in")
	}

	friends, err := self.Friends()
	if err != nil {
		return fmt.Errorf("send direct: %w", err)
	}
	target := friends.SearchByUserName(1, userID)
	if target.Count() == 0 {
		return fmt.Errorf("send direct to %s: %w", userID, ErrUnknownUser)
	}
	friend := target.First()

	if text := resp.PlainText(); text != "" {
		if _, err := friend.SendText(text); err != nil {
			return fmt.Errorf("send direct text: %w", err)
		}
	}
	if len(resp.Image) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("send direct image: %w", err)
		}
		if _, err := friend.SendImage(bytes.NewReader(resp.Image)); err != nil {
			return fmt.Errorf("send direct image: %w", err)
		}
	}
	return nil
}

func (b *Bot) convert(raw *openwechat.Message) (*models.Message, bool) {
	if raw.IsSendBySelf() {
		return nil, false
	}

	var typ models.MessageType
	switch {
	case raw.IsText():
		typ = models.TypeMessage
	case raw.MsgType == openwechat.MsgTypeSys:
		typ = models.TypeSystem
	default:
		return nil, false
	}

	group := raw.IsSendByGroup()
	sender, err := raw.Sender()
	if group {
		sender, err = raw.SenderInGroup()
	}
	if err != nil {
		b.log.Debug().Err(err).Str("msg_id", raw.MsgId).Msg("Unknown sender")
		return nil, false
	}

	selfName := ""
	b.mu.RLock()
	if b.self != nil {
		selfName = b.self.NickName
	}
	b.mu.RUnlock()

	event, text := classify(group, raw.Content, selfName)
	return &models.Message{
		ID:      raw.MsgId,
		Type:    typ,
		Event:   event,
		Text:    text,
		User:    sender.UserName,
		Channel: raw.FromUserName,
		Raw:     raw,
	}, true
}

// classify maps a chat to an event kind and strips a leading mention
func classify(group bool, content, selfName string) (models.EventKind, string) {
	if !group {
		return models.EventDirectMessage, content
	}
	if selfName == "" {
		return models.EventAmbient, content
	}

	mention := "@" + selfName
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, mention) {
		rest := strings.TrimPrefix(trimmed, mention)
		rest = strings.TrimLeft(rest, mentionSpace+" ")
		return models.EventDirectMention, rest
	}
	if strings.Contains(content, mention) {
		return models.EventMention, content
	}
	return models.EventAmbient, content
}
