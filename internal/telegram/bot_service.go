// Package telegram handles the integration with the Telegram Bot API.
// It links Telegram chats to accounts and forwards session notifications
// to the linked chats.
package telegram

import (
	"context"
	"errors"
	"skillsetu/backend/internal/localization"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/realtime"
	"skillsetu/backend/internal/storage"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

// Sender sends a plain text message to a chat.
type Sender interface {
	SendText(chatID int64, text string) error
}

// Subscriber is the notification hub.
type Subscriber interface {
	Subscribe(c realtime.Conn)
}

type apiSender struct {
	api *tgbotapi.BotAPI
}

func (s apiSender) SendText(chatID int64, text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// BotService receives Telegram updates and keeps one notification
// connection per linked chat.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	sender    Sender
	links     storage.LinkStore
	hub       Subscriber
	localizer *localization.Localizer
	logger    *zap.Logger

	mu    sync.Mutex
	conns map[int64]*Conn
}

// NewBotService authorizes the bot token and creates the service.
func NewBotService(token string, links storage.LinkStore, hub Subscriber, l *localization.Localizer, logger *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	s := NewBot(apiSender{api: bot}, links, hub, l, logger)
	s.BotAPI = bot
	return s, nil
}

// NewBot creates a service around an arbitrary sender. Run needs BotAPI set.
func NewBot(sender Sender, links storage.LinkStore, hub Subscriber, l *localization.Localizer, logger *zap.Logger) *BotService {
	return &BotService{
		sender:    sender,
		links:     links,
		hub:       hub,
		localizer: l,
		logger:    logger,
		conns:     make(map[int64]*Conn),
	}
}

// RestoreLinks subscribes every persisted chat link.
func (s *BotService) RestoreLinks(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	links, err := s.links.ListTelegramLinks(ctx)
	if err != nil {
		return err
	}
	for _, link := range links {
		s.attach(link.UserID, link.ChatID, link.Language)
	}
	s.logger.Info("Telegram links restored", zap.Int("count", len(links)))
	return nil
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run(ctx context.Context) {
	if err := s.RestoreLinks(ctx); err != nil {
		s.logger.Error("Failed to restore Telegram links", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			s.closeAll()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Only commands are understood.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	lang := ""
	if msg.From != nil {
		lang = msg.From.LanguageCode
	}

	if !msg.IsCommand() {
		s.reply(msg.Chat.ID, lang, "bot.unknown_command")
		return
	}

	switch msg.Command() {
	case "start":
		s.handleStart(ctx, msg.Chat.ID, lang, strings.TrimSpace(msg.CommandArguments()))
	case "stop":
		s.handleStop(ctx, msg.Chat.ID, lang)
	default:
		s.reply(msg.Chat.ID, lang, "bot.unknown_command")
	}
}

func (s *BotService) handleStart(ctx context.Context, chatID int64, lang, code string) {
	if code == "" {
		s.reply(chatID, lang, "bot.start_usage")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	userID, err := s.links.ConsumeLinkCode(ctx, code)
	if errors.Is(err, storage.ErrLinkCodeNotFound) {
		s.reply(chatID, lang, "bot.start_invalid")
		return
	}
	if err != nil {
		s.logger.Error("Failed to consume link code", zap.Int64("chat_id", chatID), zap.Error(err))
		s.reply(chatID, lang, "bot.error")
		return
	}

	link := &models.TelegramLink{UserID: userID, ChatID: chatID, Language: lang}
	if err := s.links.SaveTelegramLink(ctx, link); err != nil {
		s.logger.Error("Failed to save Telegram link", zap.String("user_id", userID), zap.Error(err))
		s.reply(chatID, lang, "bot.error")
		return
	}

	s.attach(userID, chatID, lang)
	s.logger.Info("Telegram chat linked", zap.String("user_id", userID), zap.Int64("chat_id", chatID))
	s.reply(chatID, lang, "bot.start_linked")
}

func (s *BotService) handleStop(ctx context.Context, chatID int64, lang string) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	link, err := s.links.GetTelegramLinkByChat(ctx, chatID)
	if errors.Is(err, storage.ErrLinkNotFound) {
		s.reply(chatID, lang, "bot.stop_not_linked")
		return
	}
	if err != nil {
		s.logger.Error("Failed to read Telegram link", zap.Int64("chat_id", chatID), zap.Error(err))
		s.reply(chatID, lang, "bot.error")
		return
	}
	if err := s.links.DeleteTelegramLink(ctx, link.UserID); err != nil {
		s.logger.Error("Failed to delete Telegram link", zap.String("user_id", link.UserID), zap.Error(err))
		s.reply(chatID, lang, "bot.error")
		return
	}

	s.detach(chatID)
	s.logger.Info("Telegram chat unlinked", zap.String("user_id", link.UserID), zap.Int64("chat_id", chatID))
	s.reply(chatID, lang, "bot.stop_done")
}

// attach replaces whatever connection the chat or the user had before.
func (s *BotService) attach(userID string, chatID int64, lang string) {
	c := NewConn(userID, chatID, lang, s.sender, s.localizer, s.logger)

	s.mu.Lock()
	var stale []*Conn
	for id, existing := range s.conns {
		if id == chatID || existing.UserID() == userID {
			stale = append(stale, existing)
			delete(s.conns, id)
		}
	}
	s.conns[chatID] = c
	s.mu.Unlock()

	for _, old := range stale {
		old.Close()
	}
	c.Run()
	s.hub.Subscribe(c)
}

func (s *BotService) detach(chatID int64) {
	s.mu.Lock()
	c, ok := s.conns[chatID]
	delete(s.conns, chatID)
	s.mu.Unlock()

	if ok {
		c.Close()
	}
}

// Linked reports whether the chat currently has a live notification connection.
func (s *BotService) Linked(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[chatID]
	return ok
}

func (s *BotService) closeAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[int64]*Conn)
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *BotService) reply(chatID int64, lang, key string) {
	if err := s.sender.SendText(chatID, s.localizer.GetString(lang, key)); err != nil {
		s.logger.Warn("Failed to reply in Telegram", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
