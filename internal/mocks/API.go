package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"hue-toys/internal/bridge"
	"hue-toys/internal/core"
)

type API struct {
	mock.Mock
}

// SetLightState provides a mock function with given fields: ctx, light, params
func (_m *API) SetLightState(ctx context.Context, light int, params core.Set) ([]*bridge.APIError, error) {
	ret := _m.Called(ctx, light, params)

	var r0 []*bridge.APIError
	if rf, ok := ret.Get(0).(func(context.Context, int, core.Set) []*bridge.APIError); ok {
		r0 = rf(ctx, light, params)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*bridge.APIError)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int, core.Set) error); ok {
		r1 = rf(ctx, light, params)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// LightState provides a mock function with given fields: ctx, light
func (_m *API) LightState(ctx context.Context, light int) (core.LightState, error) {
	ret := _m.Called(ctx, light)

	var r0 core.LightState
	if rf, ok := ret.Get(0).(func(context.Context, int) core.LightState); ok {
		r0 = rf(ctx, light)
	} else {
		r0 = ret.Get(0).(core.LightState)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, light)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Lights provides a mock function with given fields: ctx
func (_m *API) Lights(ctx context.Context) (map[int]string, error) {
	ret := _m.Called(ctx)

	var r0 map[int]string
	if rf, ok := ret.Get(0).(func(context.Context) map[int]string); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[int]string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
