package mocks

import (
	"github.com/myleshyson/lsprotocol-go/protocol"
	"github.com/stretchr/testify/mock"
)

type MockBridge struct {
	mock.Mock
}

func (m *MockBridge) FindSymbolDefinitions(uri string, line, character uint32) ([]protocol.Location, error) {
	args := m.Called(uri, line, character)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]protocol.Location), args.Error(1)
}

func (m *MockBridge) HandlesURI(uri string) bool {
	args := m.Called(uri)
	return args.Bool(0)
}

func (m *MockBridge) Workspace() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBridge) Shutdown() error {
	args := m.Called()
	return args.Error(0)
}
