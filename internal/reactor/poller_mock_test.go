//go:build linux

package reactor

import (
	"reflect"
	"time"

	"go.uber.org/mock/gomock"
)

// MockPoller is a hand-written stand-in for the generated mock mockgen would
// produce for the Poller interface, in the same shape: a thin wrapper over
// gomock.Controller with an EXPECT() recorder per method.
type MockPoller struct {
	ctrl     *gomock.Controller
	recorder *MockPollerMockRecorder
}

// MockPollerMockRecorder records expected calls for MockPoller.
type MockPollerMockRecorder struct {
	mock *MockPoller
}

// NewMockPoller constructs a MockPoller bound to ctrl.
func NewMockPoller(ctrl *gomock.Controller) *MockPoller {
	m := &MockPoller{ctrl: ctrl}
	m.recorder = &MockPollerMockRecorder{mock: m}
	return m
}

// EXPECT returns an object that allows callers to indicate expected calls.
func (m *MockPoller) EXPECT() *MockPollerMockRecorder {
	return m.recorder
}

func (m *MockPoller) Poll(timeout time.Duration, active *[]*Channel) (time.Time, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Poll", timeout, active)
	ret0, _ := ret[0].(time.Time)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockPollerMockRecorder) Poll(timeout, active any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Poll",
		reflect.TypeOf((*MockPoller)(nil).Poll), timeout, active)
}

func (m *MockPoller) UpdateChannel(c *Channel) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateChannel", c)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockPollerMockRecorder) UpdateChannel(c any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateChannel",
		reflect.TypeOf((*MockPoller)(nil).UpdateChannel), c)
}

func (m *MockPoller) RemoveChannel(c *Channel) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RemoveChannel", c)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockPollerMockRecorder) RemoveChannel(c any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RemoveChannel",
		reflect.TypeOf((*MockPoller)(nil).RemoveChannel), c)
}

func (m *MockPoller) HasChannel(c *Channel) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "HasChannel", c)
	ret0, _ := ret[0].(bool)
	return ret0
}

func (mr *MockPollerMockRecorder) HasChannel(c any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "HasChannel",
		reflect.TypeOf((*MockPoller)(nil).HasChannel), c)
}

func (m *MockPoller) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockPollerMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close",
		reflect.TypeOf((*MockPoller)(nil).Close))
}

var _ Poller = (*MockPoller)(nil)
