package container

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/budget-gate/internal/application/service"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = "container_" + t.Name()
	cfg.Database.InMemory = true
	cfg.Worker.NotificationPollInterval = time.Hour
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Lark.AppID = "cli_x"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "lark.app_secret")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["lark"].Message)
	assert.Equal(t, "disabled", health.Components["openai"].Message)
	assert.Equal(t, 2, c.Workers().GetWorkerCount())

	require.NoError(t, c.Repositories().Project.Create(ctx, &entity.Project{Name: "Depot", Budget: decimal.NewFromInt(5000)}))
	svc := c.Services()
	created, err := svc.PurchaseOrder.Create(ctx, service.CreatePurchaseOrderInput{
		SupplierID: 1,
		Items:      []service.PurchaseOrderItemInput{{MaterialID: 1, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(1000)}},
		Actor:      "buyer-1",
	})
	require.NoError(t, err)

	result, err := svc.PurchaseOrder.SetFinanceStatus(ctx, created.ID, "APPROVE", "", "fin-1")
	require.NoError(t, err)
	assert.True(t, result.AvailableBudget.Equal(decimal.NewFromInt(3000)))

	require.Len(t, c.Dispatcher().ListHandlers("purchase_order.created"), 2)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
	assert.False(t, c.Health(ctx).Overall)
}

func TestProvideNarrator(t *testing.T) {
	narrator, err := ProvideNarrator(&OpenAIConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, narrator)

	narrator, err = ProvideNarrator(&OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", MaxTokens: 99}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, narrator)

	_, err = ProvideNarrator(&OpenAIConfig{APIKey: "k", PromptsPath: "does/not/exist.yaml"}, zap.NewNop())
	assert.Error(t, err)
}

func TestProvideMessenger(t *testing.T) {
	sender, err := ProvideMessenger(&LarkConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, sender)

	sender, err = ProvideMessenger(&LarkConfig{AppID: "cli_x", AppSecret: "s"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, sender)
}
