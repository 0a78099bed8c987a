package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"boostpanel/internal/config"
	"boostpanel/internal/model"
	"boostpanel/internal/repository"
	"boostpanel/pkg/idgen"

	"gorm.io/gorm"
)

type MessageService struct {
	db          *gorm.DB
	cfg         *config.Config
	userRepo    *repository.UserRepository
	messageRepo *repository.MessageRepository
	historyRepo *repository.HistoryRepository
	outboxRepo  *repository.OutboxRepository
}

func NewMessageService(db *gorm.DB, cfg *config.Config) *MessageService {
	return &MessageService{
		db:          db,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		messageRepo: repository.NewMessageRepository(db),
		historyRepo: repository.NewHistoryRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// Broadcast 管理员全员广播
// 只落一条 recipient = "all" 的记录，收件箱查询时做读侧过滤
func (s *MessageService) Broadcast(ctx context.Context, subject, body, operator string) (*model.Message, error) {
	if subject == "" || body == "" {
		return nil, fmt.Errorf("%w: 标题和正文不能为空", ErrValidation)
	}

	msg := &model.Message{
		MessageNo: idgen.GenerateMessageNo(),
		Recipient: model.RecipientAll,
		Subject:   subject,
		Body:      body,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.messageRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入广播失败: %w", err)
		}

		item := &model.HistoryItem{
			Action: model.ActionSentGlobalMessage,
			Target: "All Users",
			Actor:  operator,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		payload := map[string]interface{}{
			"event":      "broadcast",
			"message_no": msg.MessageNo,
			"subject":    subject,
			"at":         time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(payload)
		outboxMsg := &model.OutboxMessage{
			MessageKey: msg.MessageNo,
			Topic:      s.cfg.Kafka.Topic.Broadcast,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入事件失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[MessageService] 全员广播: messageNo=%s, subject=%s", msg.MessageNo, subject)
	return msg, nil
}

// SendToUser 发给单个用户的站内信（系统通知）
func (s *MessageService) SendToUser(ctx context.Context, uid, subject, body string) (*model.Message, error) {
	if subject == "" || body == "" {
		return nil, fmt.Errorf("%w: 标题和正文不能为空", ErrValidation)
	}
	if _, err := s.userRepo.GetByUID(ctx, uid); err != nil {
		return nil, err
	}

	msg := &model.Message{
		MessageNo: idgen.GenerateMessageNo(),
		Recipient: uid,
		Subject:   subject,
		Body:      body,
	}
	if err := s.messageRepo.Create(ctx, nil, msg); err != nil {
		return nil, fmt.Errorf("写入站内信失败: %w", err)
	}
	return msg, nil
}

// ListInbox 用户收件箱：私信 + 广播，按清空水位线过滤
func (s *MessageService) ListInbox(ctx context.Context, uid string) ([]*model.Message, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.messageRepo.ListForUser(ctx, uid, user.InboxClearedAt)
}

// ClearInbox 清空收件箱
// 私信直接删除；广播是共享记录，只推进该用户的水位线（按用户隐藏），
// 其他用户的收件箱不受影响
func (s *MessageService) ClearInbox(ctx context.Context, uid string) error {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.messageRepo.DeleteDirect(ctx, tx, uid); err != nil {
			return fmt.Errorf("删除私信失败: %w", err)
		}
		if err := s.userRepo.SetInboxClearedAt(ctx, tx, uid, now); err != nil {
			return err
		}

		item := &model.HistoryItem{
			Action:  model.ActionClearedInbox,
			Target:  uid,
			Actor:   user.Name,
			UserUID: uid,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	log.Printf("[MessageService] 收件箱已清空: uid=%s", uid)
	return nil
}
