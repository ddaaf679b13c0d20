package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/budget-gate/internal/application/port"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const (
	receiveIDChat   = "chat_id"
	msgTypeText     = "text"
	defaultUserType = "open_id"
)

// messageCreator sends one prepared message body
type messageCreator interface {
	Create(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error)
}

// sdkMessageCreator is the slice of the IM API the messenger needs
type sdkMessageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// sdkMessages builds the SDK request for each body
type sdkMessages struct {
	api sdkMessageCreator
}

func (s sdkMessages) Create(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error) {
	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(body).
		Build()
	return s.api.Create(ctx, req)
}

// newTextMessageBody builds a text message body addressed to receiveID
func newTextMessageBody(receiveID, text string) (*larkIm.CreateMessageReqBody, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message content: %w", err)
	}
	return larkIm.NewCreateMessageReqBodyBuilder().
		ReceiveId(receiveID).
		MsgType(msgTypeText).
		Content(string(content)).
		Build(), nil
}

// Messenger implements port.MessageSender over Lark IM.
// Role recipients go to the group chat configured for the role; user recipients get a direct message.
type Messenger struct {
	messages   messageCreator
	roleChats  map[string]string
	userIDType string
	logger     *zap.Logger
}

var _ port.MessageSender = (*Messenger)(nil)

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(client *SDKClient, cfg Config, logger *zap.Logger) *Messenger {
	return newMessenger(sdkMessages{api: client.GetClient().Im.Message}, cfg, logger)
}

func newMessenger(messages messageCreator, cfg Config, logger *zap.Logger) *Messenger {
	userIDType := cfg.UserIDType
	if userIDType == "" {
		userIDType = defaultUserType
	}
	return &Messenger{
		messages:   messages,
		roleChats:  cfg.RoleChats,
		userIDType: userIDType,
		logger:     logger,
	}
}

// Send delivers a text message to the recipient
func (m *Messenger) Send(ctx context.Context, to port.Recipient, text string) error {
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	receiveIDType, receiveID, err := m.resolve(to)
	if err != nil {
		return err
	}

	body, err := newTextMessageBody(receiveID, text)
	if err != nil {
		return err
	}

	resp, err := m.messages.Create(ctx, receiveIDType, body)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id_type", receiveIDType),
		zap.String("receive_id", receiveID))

	return nil
}

func (m *Messenger) resolve(to port.Recipient) (string, string, error) {
	switch {
	case to.UserID != "":
		return m.userIDType, to.UserID, nil
	case to.Role != "":
		chatID, ok := m.roleChats[to.Role]
		if !ok || chatID == "" {
			return "", "", fmt.Errorf("no chat configured for role %s", to.Role)
		}
		return receiveIDChat, chatID, nil
	default:
		return "", "", fmt.Errorf("recipient has neither role nor user")
	}
}
