package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/garyjia/budget-gate/internal/application/port"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	receiveIDType string
	body          *larkIm.CreateMessageReqBody
}

type fakeMessages struct {
	createFunc func(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error)
	sent       []sentMessage
}

func (f *fakeMessages) Create(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error) {
	f.sent = append(f.sent, sentMessage{receiveIDType: receiveIDType, body: body})
	if f.createFunc != nil {
		return f.createFunc(ctx, receiveIDType, body)
	}
	return &larkIm.CreateMessageResp{Data: &larkIm.CreateMessageRespData{MessageId: larkcore.StringPtr("om_1")}}, nil
}

type fakeSDKMessages struct {
	requests []*larkIm.CreateMessageReq
}

func (f *fakeSDKMessages) Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error) {
	f.requests = append(f.requests, req)
	return &larkIm.CreateMessageResp{Data: &larkIm.CreateMessageRespData{MessageId: larkcore.StringPtr("om_2")}}, nil
}

func testConfig() Config {
	return Config{
		RoleChats:  map[string]string{"FINANCE_OFFICER": "oc_finance"},
		UserIDType: "user_id",
	}
}

func TestNewTextMessageBody(t *testing.T) {
	text := "PO-20260520-ABCD1234 needs \"finance\" review\nTotal: 1200"
	body, err := newTextMessageBody("oc_finance", text)
	require.NoError(t, err)

	require.NotNil(t, body.ReceiveId)
	assert.Equal(t, "oc_finance", *body.ReceiveId)
	require.NotNil(t, body.MsgType)
	assert.Equal(t, msgTypeText, *body.MsgType)

	require.NotNil(t, body.Content)
	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, text, content["text"])
}

func TestMessenger_SendToRole(t *testing.T) {
	fake := &fakeMessages{}
	m := newMessenger(fake, testConfig(), zap.NewNop())

	require.NoError(t, m.Send(context.Background(), port.Recipient{Role: "FINANCE_OFFICER"}, "needs review"))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, receiveIDChat, fake.sent[0].receiveIDType)
	want, err := newTextMessageBody("oc_finance", "needs review")
	require.NoError(t, err)
	assert.Equal(t, want, fake.sent[0].body)
}

func TestMessenger_SendToUser(t *testing.T) {
	fake := &fakeMessages{}
	m := newMessenger(fake, testConfig(), zap.NewNop())

	require.NoError(t, m.Send(context.Background(), port.Recipient{UserID: "pm-1"}, "paid"))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "user_id", fake.sent[0].receiveIDType)
	require.NotNil(t, fake.sent[0].body.ReceiveId)
	assert.Equal(t, "pm-1", *fake.sent[0].body.ReceiveId)
}

func TestSDKMessages_ForwardsRequest(t *testing.T) {
	api := &fakeSDKMessages{}
	body, err := newTextMessageBody("oc_finance", "x")
	require.NoError(t, err)

	resp, err := sdkMessages{api: api}.Create(context.Background(), receiveIDChat, body)
	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	assert.NotNil(t, api.requests[0])
	assert.Equal(t, "om_2", *resp.Data.MessageId)
}

func TestMessenger_SendErrors(t *testing.T) {
	tests := []struct {
		name string
		to   port.Recipient
		text string
		resp *larkIm.CreateMessageResp
		err  error
	}{
		{name: "empty text", to: port.Recipient{UserID: "u"}},
		{name: "unknown role", to: port.Recipient{Role: "PROCUREMENT"}, text: "x"},
		{name: "no recipient", text: "x"},
		{name: "transport failure", to: port.Recipient{UserID: "u"}, text: "x", err: errors.New("connection reset")},
		{
			name: "api failure",
			to:   port.Recipient{UserID: "u"},
			text: "x",
			resp: &larkIm.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230001, Msg: "invalid receive_id"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMessages{createFunc: func(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error) {
				return tt.resp, tt.err
			}}
			m := newMessenger(fake, testConfig(), zap.NewNop())
			assert.Error(t, m.Send(context.Background(), tt.to, tt.text))
		})
	}
}

func TestNewMessengerDefaultsUserIDType(t *testing.T) {
	m := newMessenger(&fakeMessages{}, Config{}, zap.NewNop())
	assert.Equal(t, "open_id", m.userIDType)

	client := NewSDKClient(Config{AppID: "cli_x", AppSecret: "s"}, zap.NewNop())
	assert.Equal(t, "cli_x", client.GetAppID())
	assert.NotNil(t, NewMessenger(client, testConfig(), zap.NewNop()))
}
