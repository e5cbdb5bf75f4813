package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	platform "github.com/sells-group/auditor-cli/internal/platform"
)

// MockPortal is a mock type for the platform.Portal interface.
type MockPortal struct {
	mock.Mock
}

var _ platform.Portal = (*MockPortal)(nil)

// Folders provides a mock function with given fields: ctx
func (_m *MockPortal) Folders(ctx context.Context) (map[string]string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Folders")
	}

	var r0 map[string]string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[string]string)
	}
	return r0, ret.Error(1)
}

// UserItems provides a mock function with given fields: ctx, folderID
func (_m *MockPortal) UserItems(ctx context.Context, folderID string) ([]platform.Summary, error) {
	ret := _m.Called(ctx, folderID)

	if len(ret) == 0 {
		panic("no return value specified for UserItems")
	}

	var r0 []platform.Summary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]platform.Summary)
	}
	return r0, ret.Error(1)
}

// Item provides a mock function with given fields: ctx, id
func (_m *MockPortal) Item(ctx context.Context, id string) (platform.Item, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for Item")
	}

	var r0 platform.Item
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(platform.Item)
	}
	return r0, ret.Error(1)
}

// Groups provides a mock function with given fields: ctx
func (_m *MockPortal) Groups(ctx context.Context) (map[string]string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Groups")
	}

	var r0 map[string]string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[string]string)
	}
	return r0, ret.Error(1)
}

// QueryTable provides a mock function with given fields: ctx, url, fields
func (_m *MockPortal) QueryTable(ctx context.Context, url string, fields []string) ([][]string, error) {
	ret := _m.Called(ctx, url, fields)

	if len(ret) == 0 {
		panic("no return value specified for QueryTable")
	}

	var r0 [][]string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([][]string)
	}
	return r0, ret.Error(1)
}

// NewMockPortal creates a new instance of MockPortal. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockPortal(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPortal {
	m := &MockPortal{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
