package mocks

import (
	"context"
	"fmt"

	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Rerank(ctx context.Context, req *rerank.Request) (*rerank.Result, error) {
	args := m.Called(ctx, req)
	result, ok := args.Get(0).(*rerank.Result)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("expected *rerank.Result, got %T", args.Get(0))
	}
	return result, args.Error(1)
}
