package actor

import "github.com/codewandler/chatlog-go/internal/reflector"

type msgTyper interface{ MsgType() string }

func msgTypeFor[T any]() string {
	var z T
	if mt, ok := any(z).(msgTyper); ok {
		return mt.MsgType()
	}
	return reflector.NameFor[T]()
}
