package mqtt

import "errors"

var (
	ErrNotConnected      = errors.New("mqtt: not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrInvalidTopic      = errors.New("mqtt: invalid topic")
	ErrInvalidQoS        = errors.New("mqtt: invalid qos")
	ErrUnknownSetCommand = errors.New("mqtt: not a set topic")
)
