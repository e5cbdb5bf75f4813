// Package mocks provides test doubles for the platform interfaces.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/auditor-cli/internal/model"
	platform "github.com/sells-group/auditor-cli/internal/platform"
)

// MockItem is a mock type for the platform.Item interface.
type MockItem struct {
	mock.Mock
}

var _ platform.Item = (*MockItem)(nil)

// ID provides a mock function with given fields:
func (_m *MockItem) ID() string {
	return _m.Called().String(0)
}

// Title provides a mock function with given fields:
func (_m *MockItem) Title() string {
	return _m.Called().String(0)
}

// Type provides a mock function with given fields:
func (_m *MockItem) Type() string {
	return _m.Called().String(0)
}

// OwnerFolder provides a mock function with given fields:
func (_m *MockItem) OwnerFolder() string {
	return _m.Called().String(0)
}

// State provides a mock function with given fields: ctx
func (_m *MockItem) State(ctx context.Context) (*model.ItemState, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for State")
	}

	var r0 *model.ItemState
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ItemState)
	}
	return r0, ret.Error(1)
}

// Tags provides a mock function with given fields: ctx
func (_m *MockItem) Tags(ctx context.Context) ([]string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Tags")
	}

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// Description provides a mock function with given fields: ctx
func (_m *MockItem) Description(ctx context.Context) (string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Description")
	}
	return ret.String(0), ret.Error(1)
}

// Metadata provides a mock function with given fields: ctx
func (_m *MockItem) Metadata(ctx context.Context) (string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Metadata")
	}
	return ret.String(0), ret.Error(1)
}

// ServiceProperties provides a mock function with given fields: ctx
func (_m *MockItem) ServiceProperties(ctx context.Context) (*model.ServiceProperties, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for ServiceProperties")
	}

	var r0 *model.ServiceProperties
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ServiceProperties)
	}
	return r0, ret.Error(1)
}

// Layers provides a mock function with given fields: ctx
func (_m *MockItem) Layers(ctx context.Context) ([]model.LayerState, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Layers")
	}

	var r0 []model.LayerState
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.LayerState)
	}
	return r0, ret.Error(1)
}

// Update provides a mock function with given fields: ctx, update
func (_m *MockItem) Update(ctx context.Context, update platform.ItemUpdate) (bool, error) {
	ret := _m.Called(ctx, update)

	if len(ret) == 0 {
		panic("no return value specified for Update")
	}
	return ret.Bool(0), ret.Error(1)
}

// UploadMetadata provides a mock function with given fields: ctx, xml
func (_m *MockItem) UploadMetadata(ctx context.Context, xml string) (bool, error) {
	ret := _m.Called(ctx, xml)

	if len(ret) == 0 {
		panic("no return value specified for UploadMetadata")
	}
	return ret.Bool(0), ret.Error(1)
}

// UploadThumbnail provides a mock function with given fields: ctx, path
func (_m *MockItem) UploadThumbnail(ctx context.Context, path string) (bool, error) {
	ret := _m.Called(ctx, path)

	if len(ret) == 0 {
		panic("no return value specified for UploadThumbnail")
	}
	return ret.Bool(0), ret.Error(1)
}

// Move provides a mock function with given fields: ctx, folder
func (_m *MockItem) Move(ctx context.Context, folder string) (*platform.MoveResult, error) {
	ret := _m.Called(ctx, folder)

	if len(ret) == 0 {
		panic("no return value specified for Move")
	}

	var r0 *platform.MoveResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*platform.MoveResult)
	}
	return r0, ret.Error(1)
}

// Protect provides a mock function with given fields: ctx, enable
func (_m *MockItem) Protect(ctx context.Context, enable bool) (bool, error) {
	ret := _m.Called(ctx, enable)

	if len(ret) == 0 {
		panic("no return value specified for Protect")
	}
	return ret.Bool(0), ret.Error(1)
}

// ShareEveryone provides a mock function with given fields: ctx
func (_m *MockItem) ShareEveryone(ctx context.Context) (bool, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for ShareEveryone")
	}
	return ret.Bool(0), ret.Error(1)
}

// ShareGroup provides a mock function with given fields: ctx, groupID
func (_m *MockItem) ShareGroup(ctx context.Context, groupID string) (bool, error) {
	ret := _m.Called(ctx, groupID)

	if len(ret) == 0 {
		panic("no return value specified for ShareGroup")
	}
	return ret.Bool(0), ret.Error(1)
}

// SetContentStatus provides a mock function with given fields: ctx, status
func (_m *MockItem) SetContentStatus(ctx context.Context, status string) error {
	ret := _m.Called(ctx, status)

	if len(ret) == 0 {
		panic("no return value specified for SetContentStatus")
	}
	return ret.Error(0)
}

// UpdateServiceDefinition provides a mock function with given fields: ctx, definition
func (_m *MockItem) UpdateServiceDefinition(ctx context.Context, definition map[string]any) (bool, error) {
	ret := _m.Called(ctx, definition)

	if len(ret) == 0 {
		panic("no return value specified for UpdateServiceDefinition")
	}
	return ret.Bool(0), ret.Error(1)
}

// UpdateLayerDefinition provides a mock function with given fields: ctx, layerURL, definition
func (_m *MockItem) UpdateLayerDefinition(ctx context.Context, layerURL string, definition map[string]any) (bool, error) {
	ret := _m.Called(ctx, layerURL, definition)

	if len(ret) == 0 {
		panic("no return value specified for UpdateLayerDefinition")
	}
	return ret.Bool(0), ret.Error(1)
}

// NewMockItem creates a new instance of MockItem. It also registers a testing
// interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockItem(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockItem {
	m := &MockItem{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
