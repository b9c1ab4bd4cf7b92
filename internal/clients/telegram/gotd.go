package telegram

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/advisorkit/consultant-backend/internal/logger"
)

// channelIDOffset converts a bare channel id into the canonical -100… form
// used across the rest of the system.
const channelIDOffset int64 = -1000000000000

const historyPageSize = 100

// gotdSession runs an MTProto user session over a Telethon-format session
// string. Construction fails fast on missing credentials; authorization
// itself is only checked once connected.
type gotdSession struct {
	log    *logger.Logger
	client *telegram.Client

	mu       sync.RWMutex
	handlers []Handler

	peersMu sync.Mutex
	peers   map[int64]tg.InputPeerClass
}

func NewGotdSession(log *logger.Logger) (Session, error) {
	apiID, err := strconv.Atoi(strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")))
	if err != nil || apiID == 0 {
		return nil, fmt.Errorf("missing or invalid TELEGRAM_API_ID")
	}
	apiHash := os.Getenv("TELEGRAM_API_HASH")
	if apiHash == "" {
		return nil, fmt.Errorf("missing TELEGRAM_API_HASH")
	}
	sessionString := strings.TrimSpace(os.Getenv("TELEGRAM_SESSION_STRING"))
	if sessionString == "" {
		return nil, fmt.Errorf("missing TELEGRAM_SESSION_STRING")
	}

	data, err := session.TelethonSession(sessionString)
	if err != nil {
		return nil, fmt.Errorf("parse session string: %w", err)
	}
	storage := new(session.StorageMemory)
	loader := session.Loader{Storage: storage}
	if err := loader.Save(context.Background(), data); err != nil {
		return nil, fmt.Errorf("seed session storage: %w", err)
	}

	s := &gotdSession{
		log:   log.With("client", "TelegramSession"),
		peers: make(map[int64]tg.InputPeerClass),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		s.dispatch(ctx, u.Message, e)
		return nil
	})
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		s.dispatch(ctx, u.Message, e)
		return nil
	})

	s.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})
	return s, nil
}

func (s *gotdSession) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *gotdSession) Run(ctx context.Context, ready func(ctx context.Context) error) error {
	return s.client.Run(ctx, func(ctx context.Context) error {
		status, err := s.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return ErrNotAuthorized
		}

		self, err := s.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("resolve self: %w", err)
		}
		s.log.Info("telegram session connected",
			"user_id", self.ID,
			"username", self.Username,
		)
		return ready(ctx)
	})
}

// dispatch fans a live update out to all subscribed handlers. Handler errors
// are logged and swallowed so one failing room never stalls delivery.
func (s *gotdSession) dispatch(ctx context.Context, msgClass tg.MessageClass, e tg.Entities) {
	msg, ok := msgClass.(*tg.Message)
	if !ok || msg.Out {
		return
	}

	converted := convertMessage(msg, e.Users, entityTitles(e))

	s.mu.RLock()
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, converted); err != nil {
			s.log.Error("live message handler failed",
				"chat_id", converted.ChatID,
				"message_id", converted.MessageID,
				"error", err.Error(),
			)
		}
	}
}

// History pages MessagesGetHistory backwards from the newest message, keeping
// ids above minID, and replays the collected messages oldest first.
func (s *gotdSession) History(ctx context.Context, chatID int64, minID int64, fn func(msg Message) error) error {
	peer, err := s.resolvePeer(ctx, chatID)
	if err != nil {
		return err
	}

	api := s.client.API()
	var collected []Message
	offsetID := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			MinID:    int(minID),
			Limit:    historyPageSize,
		})
		if err != nil {
			return fmt.Errorf("get history for chat %d: %w", chatID, err)
		}

		msgs, users, titles := unpackHistory(res)
		if len(msgs) == 0 {
			break
		}

		pageOldest := 0
		for _, mc := range msgs {
			m, ok := mc.(*tg.Message)
			if !ok {
				continue
			}
			if pageOldest == 0 || m.ID < pageOldest {
				pageOldest = m.ID
			}
			if int64(m.ID) <= minID {
				continue
			}
			collected = append(collected, convertMessage(m, users, titles))
		}
		if pageOldest == 0 || len(msgs) < historyPageSize {
			break
		}
		offsetID = pageOldest
	}

	for i := len(collected) - 1; i >= 0; i-- {
		if err := fn(collected[i]); err != nil {
			return err
		}
	}
	return nil
}

// resolvePeer finds the input peer for a canonical chat id. Access hashes are
// only obtainable through the dialog list, so the first lookup walks dialogs
// and fills the cache for every chat seen.
func (s *gotdSession) resolvePeer(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
	s.peersMu.Lock()
	peer, ok := s.peers[chatID]
	s.peersMu.Unlock()
	if ok {
		return peer, nil
	}

	res, err := s.client.API().MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      500,
	})
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}

	var chats []tg.ChatClass
	var users []tg.UserClass
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		chats, users = d.Chats, d.Users
	case *tg.MessagesDialogsSlice:
		chats, users = d.Chats, d.Users
	}

	s.peersMu.Lock()
	for _, c := range chats {
		switch chat := c.(type) {
		case *tg.Channel:
			hash, ok := chat.GetAccessHash()
			if !ok {
				continue
			}
			s.peers[channelIDOffset-chat.ID] = &tg.InputPeerChannel{ChannelID: chat.ID, AccessHash: hash}
		case *tg.Chat:
			s.peers[-chat.ID] = &tg.InputPeerChat{ChatID: chat.ID}
		}
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			s.peers[user.ID] = &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
		}
	}
	peer, ok = s.peers[chatID]
	s.peersMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("chat %d not found among account dialogs", chatID)
	}
	return peer, nil
}

func unpackHistory(res tg.MessagesMessagesClass) ([]tg.MessageClass, map[int64]*tg.User, map[int64]string) {
	var msgs []tg.MessageClass
	var chats []tg.ChatClass
	var rawUsers []tg.UserClass

	switch m := res.(type) {
	case *tg.MessagesMessages:
		msgs, chats, rawUsers = m.Messages, m.Chats, m.Users
	case *tg.MessagesMessagesSlice:
		msgs, chats, rawUsers = m.Messages, m.Chats, m.Users
	case *tg.MessagesChannelMessages:
		msgs, chats, rawUsers = m.Messages, m.Chats, m.Users
	}

	users := make(map[int64]*tg.User, len(rawUsers))
	for _, u := range rawUsers {
		if user, ok := u.(*tg.User); ok {
			users[user.ID] = user
		}
	}

	titles := make(map[int64]string, len(chats))
	for _, c := range chats {
		switch chat := c.(type) {
		case *tg.Channel:
			titles[channelIDOffset-chat.ID] = chat.Title
		case *tg.Chat:
			titles[-chat.ID] = chat.Title
		}
	}
	return msgs, users, titles
}

func entityTitles(e tg.Entities) map[int64]string {
	titles := make(map[int64]string, len(e.Channels)+len(e.Chats))
	for id, ch := range e.Channels {
		titles[channelIDOffset-id] = ch.Title
	}
	for id, chat := range e.Chats {
		titles[-id] = chat.Title
	}
	return titles
}

func convertMessage(m *tg.Message, users map[int64]*tg.User, titles map[int64]string) Message {
	chatID := canonicalPeerID(m.PeerID)

	out := Message{
		ChatID:    chatID,
		MessageID: int64(m.ID),
		Date:      time.Unix(int64(m.Date), 0).UTC(),
		Text:      m.Message,
		ChatTitle: titles[chatID],
	}

	if from, ok := m.GetFromID(); ok {
		if p, ok := from.(*tg.PeerUser); ok {
			if name := displayName(users[p.UserID]); name != "" {
				out.SenderName = &name
			}
		}
	}

	if media, ok := m.GetMedia(); ok {
		out.HasMedia = true
		mt := mediaType(media)
		out.MediaType = &mt
	}
	return out
}

func canonicalPeerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return channelIDOffset - p.ChannelID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerUser:
		return p.UserID
	default:
		return 0
	}
}

func displayName(u *tg.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.Username
	}
	return name
}

func mediaType(media tg.MessageMediaClass) string {
	switch media.(type) {
	case *tg.MessageMediaPhoto:
		return "photo"
	case *tg.MessageMediaDocument:
		return "document"
	case *tg.MessageMediaWebPage:
		return "webpage"
	case *tg.MessageMediaPoll:
		return "poll"
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return "geo"
	case *tg.MessageMediaContact:
		return "contact"
	default:
		return "other"
	}
}
