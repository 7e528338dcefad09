package handler

import (
	"echonet-bridge/echonet_lite"
	"errors"
	"fmt"
)

var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrUnknownChannel  = errors.New("unknown channel")
	ErrDeviceExists    = errors.New("device already registered")
	ErrMessengerClosed = errors.New("messenger closed")
)

// ErrRetriesExhausted は再送回数を使い切っても応答が無かったことを示すエラー
type ErrRetriesExhausted struct {
	Key     echonet_lite.InstanceKey
	Kind    RequestKind
	Retries int
}

func (e ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("no %s response from %v after %d retries", e.Kind, e.Key, e.Retries)
}
