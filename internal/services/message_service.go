package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"relay-chat/internal/commands"
	"relay-chat/internal/domain/chat"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/user"
	"relay-chat/internal/notify"
	"relay-chat/internal/repository"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier starts push delivery for a sent message.
type Notifier interface {
	Dispatch(ctx context.Context, recipients []string, title, body, chatID string) *notify.Task
}

type MessageService struct {
	chats    repository.ChatRepository
	index    repository.ChatIndexRepository
	messages repository.MessageRepository
	blocks   repository.BlockRepository
	stars    repository.StarRepository
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
	bus      *commands.Bus
}

type MessageServiceDeps struct {
	Chats    repository.ChatRepository
	Index    repository.ChatIndexRepository
	Messages repository.MessageRepository
	Blocks   repository.BlockRepository
	Stars    repository.StarRepository
	Notifier Notifier
	Logger   *logger.Logger
}

func NewMessageService(deps MessageServiceDeps) *MessageService {
	log := deps.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	svc := &MessageService{
		chats:    deps.Chats,
		index:    deps.Index,
		messages: deps.Messages,
		blocks:   deps.Blocks,
		stars:    deps.Stars,
		notifier: deps.Notifier,
		log:      log,
		now:      time.Now,
	}
	svc.RegisterHandlers()
	return svc
}

// RegisterHandlers binds every chat and message command to the bus.
func (s *MessageService) RegisterHandlers() {
	if s.bus == nil {
		s.bus = commands.NewBus()
	}
	s.bus.Register(commands.TypeCreateChat, commands.Typed(func(ctx context.Context, cmd commands.CreateChatCommand) (commands.Result, error) {
		key, err := s.createChat(ctx, cmd)
		return commands.Result{AggregateID: key}, err
	}))
	s.bus.Register(commands.TypeUpdateChat, commands.Typed(func(ctx context.Context, cmd commands.UpdateChatCommand) (commands.Result, error) {
		return commands.Result{AggregateID: cmd.ChatID}, s.chats.Update(ctx, cmd.ChatID, cmd.Patch.Record(cmd.UID, s.now()))
	}))
	s.bus.Register(commands.TypeAddMembers, commands.Typed(func(ctx context.Context, cmd commands.AddMembersCommand) (commands.Result, error) {
		added, err := s.addMembers(ctx, cmd)
		return commands.Result{AggregateID: cmd.Chat.Key, Payload: added}, err
	}))
	s.bus.Register(commands.TypeRemoveMember, commands.Typed(func(ctx context.Context, cmd commands.RemoveMemberCommand) (commands.Result, error) {
		return commands.Result{AggregateID: cmd.Chat.Key}, s.removeMember(ctx, cmd)
	}))
	s.bus.Register(commands.TypeSendText, commands.Typed(func(ctx context.Context, cmd commands.SendTextCommand) (commands.Result, error) {
		res, err := s.send(ctx, cmd.ChatID, cmd.Sender, cmd.Participants, message.Message{
			Text:    cmd.Text,
			ReplyTo: cmd.ReplyTo,
		}, cmd.Text)
		return commands.Result{AggregateID: cmd.ChatID, Payload: res}, err
	}))
	s.bus.Register(commands.TypeSendImage, commands.Typed(func(ctx context.Context, cmd commands.SendImageCommand) (commands.Result, error) {
		res, err := s.send(ctx, cmd.ChatID, cmd.Sender, cmd.Participants, message.Message{
			Text:     message.ImageText,
			ImageURL: cmd.ImageURL,
			ReplyTo:  cmd.ReplyTo,
		}, cmd.Sender.FirstName+" sent an image")
		return commands.Result{AggregateID: cmd.ChatID, Payload: res}, err
	}))
	s.bus.Register(commands.TypeSendInfo, commands.Typed(func(ctx context.Context, cmd commands.SendInfoCommand) (commands.Result, error) {
		key, err := s.appendMessage(ctx, cmd.ChatID, message.Message{SentBy: cmd.SenderUID, Text: cmd.Text, Type: message.TypeInfo})
		return commands.Result{AggregateID: cmd.ChatID, Payload: key}, err
	}))
	s.bus.Register(commands.TypeStarMessage, commands.Typed(func(ctx context.Context, cmd commands.StarMessageCommand) (commands.Result, error) {
		starred, err := s.toggleStar(ctx, cmd)
		return commands.Result{AggregateID: cmd.MessageID, Payload: starred}, err
	}))
}

func (s *MessageService) Bus() *commands.Bus {
	return s.bus
}

// SendResult is the outcome of a send. A blocked send writes nothing and is
// not an error.
type SendResult struct {
	Blocked      bool
	MessageKey   string
	Notification *notify.Task
}

func (s *MessageService) LoadChat(ctx context.Context, chatID string) (chat.Chat, error) {
	return s.chats.GetByID(ctx, chatID)
}

// Messages returns the chat's messages in send order. Records that fail
// validation are left out.
func (s *MessageService) Messages(ctx context.Context, chatID string) ([]message.Message, error) {
	return s.messages.List(ctx, chatID)
}

// CreateChat writes the chat metadata and then adds the new key to every
// member's index. The index writes are independent; a failure part way
// returns the key together with the error. Creating a one to one chat whose
// member set already has a chat returns that chat and re-adds it to any
// member index that lost it, so retries converge.
func (s *MessageService) CreateChat(ctx context.Context, cmd commands.CreateChatCommand) (string, error) {
	res, err := s.bus.Execute(ctx, cmd)
	return res.AggregateID, err
}

func (s *MessageService) createChat(ctx context.Context, cmd commands.CreateChatCommand) (string, error) {
	d := cmd.Normalized()
	if !d.IsGroupChat {
		existing, found, err := s.findDirectChat(ctx, d.Users)
		if err != nil {
			return "", err
		}
		if found {
			if _, err := ensureIndexed(ctx, s.index, existing); err != nil {
				return existing.Key, err
			}
			return existing.Key, nil
		}
	}

	key, err := s.chats.Create(ctx, d.Record(cmd.CreatorUID, s.now()))
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	for _, uid := range d.Users {
		if _, err := s.index.Add(ctx, uid, key); err != nil {
			s.log.Ctx(ctx).Error("chat index write failed",
				zap.String("chat_id", key), zap.String("member", uid), zap.Error(err))
			return key, fmt.Errorf("index chat %s for %s: %w", key, uid, err)
		}
	}
	return key, nil
}

// FindDirectChat returns the one to one chat between a and b, if any.
func (s *MessageService) FindDirectChat(ctx context.Context, a, b string) (chat.Chat, bool, error) {
	return s.findDirectChat(ctx, []string{a, b})
}

func (s *MessageService) findDirectChat(ctx context.Context, members []string) (chat.Chat, bool, error) {
	seen := map[string]struct{}{}
	for _, uid := range members {
		entries, err := s.index.Entries(ctx, uid)
		if err != nil {
			return chat.Chat{}, false, err
		}
		for _, e := range entries {
			if _, ok := seen[e.ChatID]; ok {
				continue
			}
			seen[e.ChatID] = struct{}{}
			c, err := s.chats.GetByID(ctx, e.ChatID)
			if err != nil {
				// dangling or malformed references are not candidates
				continue
			}
			if !c.IsGroupChat && c.SameMembers(members) {
				return c, true, nil
			}
		}
	}
	return chat.Chat{}, false, nil
}

// IsBlocked reports whether any recipient other than the sender has blocked
// the sender. The checks run concurrently.
func (s *MessageService) IsBlocked(ctx context.Context, senderUID string, recipientUIDs []string) (bool, error) {
	var blocked atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	seen := map[string]struct{}{}
	for _, uid := range recipientUIDs {
		if uid == senderUID || uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		g.Go(func() error {
			ok, err := s.blocks.IsBlocked(gctx, uid, senderUID)
			if err != nil {
				return fmt.Errorf("block check %s: %w", uid, err)
			}
			if ok {
				blocked.Store(true)
			}
			return nil
		})
	}
	err := g.Wait()
	if blocked.Load() {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *MessageService) SendTextMessage(ctx context.Context, cmd commands.SendTextCommand) (SendResult, error) {
	return s.executeSend(ctx, cmd)
}

func (s *MessageService) SendImage(ctx context.Context, cmd commands.SendImageCommand) (SendResult, error) {
	return s.executeSend(ctx, cmd)
}

func (s *MessageService) executeSend(ctx context.Context, cmd commands.Command) (SendResult, error) {
	res, err := s.bus.Execute(ctx, cmd)
	out, _ := res.Payload.(SendResult)
	return out, err
}

func (s *MessageService) send(ctx context.Context, chatID string, sender user.User, participants []string, msg message.Message, pushBody string) (SendResult, error) {
	ctx = logger.WithChatID(ctx, chatID)

	blocked, err := s.IsBlocked(ctx, sender.UID, participants)
	if err != nil {
		return SendResult{}, err
	}
	if blocked {
		s.log.Ctx(ctx).Info("send refused, sender is blocked", zap.String("sender", sender.UID))
		return SendResult{Blocked: true, Notification: notify.CompletedTask()}, nil
	}

	msg.SentBy = sender.UID
	key, err := s.appendMessage(ctx, chatID, msg)
	if err != nil {
		return SendResult{}, err
	}

	result := SendResult{MessageKey: key, Notification: notify.CompletedTask()}
	recipients := others(participants, sender.UID)
	if s.notifier != nil && len(recipients) > 0 {
		title := sender.FirstName + " " + sender.LastName
		result.Notification = s.notifier.Dispatch(ctx, recipients, title, pushBody, chatID)
	}
	return result, nil
}

// SendInfoMessage posts a system message. It skips the block check and sends
// no notification.
func (s *MessageService) SendInfoMessage(ctx context.Context, cmd commands.SendInfoCommand) (string, error) {
	res, err := s.bus.Execute(ctx, cmd)
	key, _ := res.Payload.(string)
	return key, err
}

// appendMessage pushes the message and then stamps the chat. Once the push
// succeeded the message exists, so a failed stamp is logged and the key is
// still returned; retrying would duplicate the message.
func (s *MessageService) appendMessage(ctx context.Context, chatID string, msg message.Message) (string, error) {
	now := s.now()
	msg.SentAt = now
	key, err := s.messages.Append(ctx, chatID, msg)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	err = s.chats.Update(ctx, chatID, map[string]any{
		"updatedBy":         msg.SentBy,
		"updatedAt":         chat.FormatTime(now),
		"latestMessageText": msg.Text,
	})
	if err != nil {
		s.log.Ctx(ctx).Warn("chat stamp failed after message write",
			zap.String("chat_id", chatID), zap.String("message_id", key), zap.Error(err))
	}
	return key, nil
}

func (s *MessageService) UpdateChatData(ctx context.Context, cmd commands.UpdateChatCommand) error {
	_, err := s.bus.Execute(ctx, cmd)
	return err
}

// RemoveUserFromChat drops the target from the chat, removes the first index
// entry of the target that references the chat and posts one info message.
func (s *MessageService) RemoveUserFromChat(ctx context.Context, cmd commands.RemoveMemberCommand) error {
	_, err := s.bus.Execute(ctx, cmd)
	return err
}

func (s *MessageService) removeMember(ctx context.Context, cmd commands.RemoveMemberCommand) error {
	actor, target, c := cmd.Actor, cmd.Target, cmd.Chat
	err := s.UpdateChatData(ctx, commands.UpdateChatCommand{
		ChatID: c.Key,
		UID:    actor.UID,
		Patch:  chat.Patch{Users: c.Others(target.UID)},
	})
	if err != nil {
		return err
	}

	entries, err := s.index.Entries(ctx, target.UID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ChatID == c.Key {
			if err := s.index.RemoveEntry(ctx, target.UID, e.Key); err != nil {
				return err
			}
			break
		}
	}

	text := fmt.Sprintf("%s removed %s from the chat", actor.FirstName, target.FirstName)
	if actor.UID == target.UID {
		text = fmt.Sprintf("%s left the chat", actor.FirstName)
	}
	_, err = s.SendInfoMessage(ctx, commands.SendInfoCommand{ChatID: c.Key, SenderUID: actor.UID, Text: text})
	return err
}

// AddUsersToChat adds the candidates that are not members yet and returns
// their uids. When every candidate is already a member nothing is written.
func (s *MessageService) AddUsersToChat(ctx context.Context, cmd commands.AddMembersCommand) ([]string, error) {
	res, err := s.bus.Execute(ctx, cmd)
	added, _ := res.Payload.([]string)
	return added, err
}

func (s *MessageService) addMembers(ctx context.Context, cmd commands.AddMembersCommand) ([]string, error) {
	actor, c := cmd.Actor, cmd.Chat
	var added []user.User
	seen := map[string]struct{}{}
	for _, u := range cmd.Candidates {
		if u.UID == "" || c.HasMember(u.UID) {
			continue
		}
		if _, ok := seen[u.UID]; ok {
			continue
		}
		seen[u.UID] = struct{}{}
		added = append(added, u)
	}
	if len(added) == 0 {
		return nil, nil
	}

	uids := make([]string, 0, len(added))
	for _, u := range added {
		uids = append(uids, u.UID)
	}
	members := append(append([]string{}, c.Users...), uids...)
	err := s.UpdateChatData(ctx, commands.UpdateChatCommand{ChatID: c.Key, UID: actor.UID, Patch: chat.Patch{Users: members}})
	if err != nil {
		return nil, err
	}
	for _, uid := range uids {
		if _, err := s.index.Add(ctx, uid, c.Key); err != nil {
			return uids, fmt.Errorf("index chat %s for %s: %w", c.Key, uid, err)
		}
	}

	more := ""
	if len(added) > 1 {
		more = fmt.Sprintf("and %d others ", len(added)-1)
	}
	text := fmt.Sprintf("%s %s added %s %s %sto the chat",
		actor.FirstName, actor.LastName, added[0].FirstName, added[0].LastName, more)
	if _, err := s.SendInfoMessage(ctx, commands.SendInfoCommand{ChatID: c.Key, SenderUID: actor.UID, Text: text}); err != nil {
		return uids, err
	}
	return uids, nil
}

func (s *MessageService) BlockUser(ctx context.Context, blockerUID, blockedUID string) error {
	return s.blocks.Block(ctx, blockerUID, blockedUID)
}

func (s *MessageService) UnblockUser(ctx context.Context, blockerUID, blockedUID string) error {
	return s.blocks.Unblock(ctx, blockerUID, blockedUID)
}

func (s *MessageService) BlockedUsers(ctx context.Context, blockerUID string) ([]string, error) {
	return s.blocks.ListBlocked(ctx, blockerUID)
}

// StarMessage toggles the star and reports whether the message is starred
// afterwards.
func (s *MessageService) StarMessage(ctx context.Context, cmd commands.StarMessageCommand) (bool, error) {
	res, err := s.bus.Execute(ctx, cmd)
	starred, _ := res.Payload.(bool)
	return starred, err
}

func (s *MessageService) toggleStar(ctx context.Context, cmd commands.StarMessageCommand) (bool, error) {
	exists, err := s.stars.Exists(ctx, cmd.UID, cmd.ChatID, cmd.MessageID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, s.stars.Delete(ctx, cmd.UID, cmd.ChatID, cmd.MessageID)
	}
	err = s.stars.Create(ctx, cmd.UID, message.Star{MessageID: cmd.MessageID, ChatID: cmd.ChatID, StarredAt: s.now()})
	if err != nil {
		return false, err
	}
	return true, nil
}

func others(uids []string, self string) []string {
	out := make([]string, 0, len(uids))
	seen := map[string]struct{}{}
	for _, uid := range uids {
		if uid == self || uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}
