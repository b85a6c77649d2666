package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/iabalyuk/farewizard/airports"
	"github.com/iabalyuk/farewizard/storage"
)

// Telegram caps bots around 30 messages per second overall; stay a
// little under it.
const (
	sendRate  = 25
	sendBurst = 5
)

// Notification is a message the background worker asks the bot to
// deliver.
type Notification struct {
	ChatID int64
	Text   string
}

// apiClient is the slice of tgbotapi.BotAPI the bot uses; tests
// substitute a recorder.
type apiClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Bot represents the Telegram bot driving the flight-watch wizard
type Bot struct {
	api      apiClient
	airports *airports.Index
	storage  storage.Interface
	sessions SessionStore
	handlers map[Stage]stepHandler
	notifyCh chan Notification
	limiter  *rate.Limiter

	// chatQueues serializes processing per chat: one chat's updates
	// run strictly in arrival order, distinct chats in parallel.
	chatMu     sync.Mutex
	chatQueues map[int64]chan func()
}

// New creates a new bot instance
func New(token string, index *airports.Index, store storage.Interface) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newBot(api, index, store, NewMemorySessionStore()), nil
}

// newBot wires a bot around an already-constructed API client.
func newBot(api apiClient, index *airports.Index, store storage.Interface, sessions SessionStore) *Bot {
	b := &Bot{
		api:        api,
		airports:   index,
		storage:    store,
		sessions:   sessions,
		notifyCh:   make(chan Notification, 100),
		limiter:    rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		chatQueues: make(map[int64]chan func()),
	}
	b.handlers = b.buildHandlers()
	return b
}

// Start starts the bot and blocks until the updates channel closes
func (b *Bot) Start() error {
	go b.handleNotifications()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			msg := update.Message
			b.enqueue(msg.Chat.ID, func() { b.handleMessage(msg) })
		} else if update.CallbackQuery != nil {
			query := update.CallbackQuery
			b.enqueue(query.Message.Chat.ID, func() { b.handleCallbackQuery(query) })
		}
	}

	return nil
}

// GetNotifyChannel returns the channel the background worker writes to
func (b *Bot) GetNotifyChannel() chan Notification {
	return b.notifyCh
}

// enqueue hands fn to the chat's mailbox, spawning its drain goroutine
// on first use. The update loop enqueues synchronously, so a chat's
// updates execute in exact arrival order while distinct chats proceed
// in parallel. Session mutation is only safe with one in-flight update
// per chat.
func (b *Bot) enqueue(chatID int64, fn func()) {
	b.chatMu.Lock()
	q, ok := b.chatQueues[chatID]
	if !ok {
		q = make(chan func(), 16)
		b.chatQueues[chatID] = q
		go func() {
			for f := range q {
				f()
			}
		}()
	}
	b.chatMu.Unlock()
	q <- fn
}

// handleNotifications forwards worker notifications to their chats
func (b *Bot) handleNotifications() {
	for notification := range b.notifyCh {
		b.sendText(notification.ChatID, notification.Text, nil)
	}
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.sendText(chatID, "Hi! I watch flight prices for you.\n\n"+
				"/route – watch a single route (one-way or round trip)\n"+
				"/trip – build a multi-city trip\n"+
				"/list – your saved configurations\n"+
				"/help – all commands", nil)
		case "help":
			b.sendText(chatID, "Available commands:\n"+
				"/route – set up a single-route price watch\n"+
				"/trip – set up a multi-city trip watch\n"+
				"/list – show your saved configurations\n"+
				"/delete <number> – remove a configuration from /list\n"+
				"/cancel – abandon the current setup\n"+
				"/help – show this help", nil)
		case "route":
			b.startWizard(chatID, ModeRoute)
		case "trip":
			b.startWizard(chatID, ModeTrip)
		case "list":
			b.handleListCommand(chatID)
		case "delete":
			b.handleDeleteCommand(chatID, message.CommandArguments())
		case "cancel":
			if _, ok := b.sessions.Get(chatID); ok {
				b.sessions.Delete(chatID)
				b.sendText(chatID, "Okay, the configuration was discarded.", nil)
			} else {
				b.sendText(chatID, "Nothing to cancel. Start with /route or /trip.", nil)
			}
		default:
			b.sendText(chatID, "Unknown command. Use /route or /trip to set up a price watch, or /help for the full list.", nil)
		}
		return
	}

	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.sendText(chatID, "Use /route or /trip to set up a price watch.", nil)
		return
	}
	b.dispatch(session, message.Text)
}

// handleCallbackQuery handles button presses from inline keyboards
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	b.answerCallbackQuery(query.ID, "")

	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.sendText(chatID, "That setup is over. Start a new one with /route or /trip.", nil)
		return
	}
	b.dispatch(session, query.Data)
}

// startWizard opens a fresh session. A user already at every route
// quota is refused up front instead of at the end of the flow.
func (b *Bot) startWizard(chatID int64, mode Mode) {
	if _, ok := b.sessions.Get(chatID); ok {
		b.sessions.Delete(chatID)
	}

	quota, err := b.storage.GetQuota(chatID)
	if err != nil {
		log.Printf("Quota lookup failed for chat %d: %v", chatID, err)
		quota = storage.QuotaForTier(storage.TierFree)
	}

	counts, err := b.storage.LoadUserCounts(chatID)
	if err == nil && counts.Fixed >= quota.MaxFixedRoutes && counts.Flexible >= quota.MaxFlexibleRoutes {
		b.sendText(chatID, fmt.Sprintf(
			"You already have %d fixed and %d flexible configurations, the maximum for your plan. Remove one with /delete first.",
			counts.Fixed, counts.Flexible), nil)
		return
	}

	session := &Session{
		ChatID:  chatID,
		Mode:    mode,
		Stage:   StageOrigin,
		Quota:   quota,
		Presets: resolvePresets(b.storage, chatID),
		Scratch: Scratch{FilterLeg: -1},
	}
	b.sessions.Set(chatID, session)
	b.sendPrompt(session, "")
}

// handleListCommand shows the user's saved configurations
func (b *Bot) handleListCommand(chatID int64) {
	configs, err := b.storage.LoadUserConfigurations(chatID)
	if err != nil {
		log.Printf("Failed to load configurations for chat %d: %v", chatID, err)
		b.sendText(chatID, "Could not load your configurations right now. Try again in a moment.", nil)
		return
	}
	if len(configs) == 0 {
		b.sendText(chatID, "You have no saved configurations yet. Create one with /route or /trip.", nil)
		return
	}

	var lines []string
	for i, cfg := range configs {
		lines = append(lines, configurationLine(i+1, cfg))
	}
	lines = append(lines, "", "Remove one with /delete <number>.")
	b.sendText(chatID, strings.Join(lines, "\n"), nil)
}

// handleDeleteCommand removes a configuration by its /list position
func (b *Bot) handleDeleteCommand(chatID int64, args string) {
	index, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		b.sendText(chatID, "Tell me which configuration to remove, e.g. /delete 1. The numbers are in /list.", nil)
		return
	}

	configs, err := b.storage.LoadUserConfigurations(chatID)
	if err != nil {
		log.Printf("Failed to load configurations for chat %d: %v", chatID, err)
		b.sendText(chatID, "Could not load your configurations right now. Try again in a moment.", nil)
		return
	}
	if index < 1 || index > len(configs) {
		b.sendText(chatID, fmt.Sprintf("There is no configuration %d. You have %d; see /list.", index, len(configs)), nil)
		return
	}

	target := configs[index-1]
	if err := b.storage.DeleteConfiguration(chatID, target.ID); err != nil {
		log.Printf("Failed to delete configuration %s for chat %d: %v", target.ID, chatID, err)
		b.sendText(chatID, "Could not remove that configuration right now. Try again in a moment.", nil)
		return
	}
	b.sendText(chatID, fmt.Sprintf("Removed %s.", configLabel(target.Draft)), nil)
}

// sendText sends a message through the global rate limiter. Delivery
// is fire-and-forget: a failed send is logged, never retried.
func (b *Bot) sendText(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if err := b.limiter.Wait(context.Background()); err != nil {
		log.Printf("Rate limiter wait failed: %v", err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
	}
}

// answerCallbackQuery sends an answer to a callback query.
func (b *Bot) answerCallbackQuery(queryID string, text string) {
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.api.Request(callback); err != nil {
		log.Printf("Error answering callback query %s: %v", queryID, err)
	}
}
