package chatlog

import (
	"errors"

	"github.com/codewandler/chatlog-go/core/actor"
	"github.com/codewandler/chatlog-go/ports/kv"
)

var (
	ErrKeyRequired        = kv.ErrKeyRequired
	ErrStorageUnavailable = kv.ErrStorageUnavailable
	ErrRequestTimeout     = actor.ErrRequestTimeout
	ErrCorruptEntry       = kv.ErrCorruptValue

	ErrUnknownMessage = errors.New("unknown chat log message")
)
