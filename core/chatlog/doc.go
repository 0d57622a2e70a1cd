// Package chatlog is a persistent, message-driven chat log.
//
// A chat log actor receives one-way [ChatMessage] appends and [GetChatLog]
// requests through its mailbox. Each append is written to a kv.Store before
// the next message is taken, so a read queued after an append always sees it:
//
//	store := kv.NewMemStore()
//	client := chatlog.NewClient(chatlog.NewRouter(store, chatlog.Options{}), chatlog.ClientOptions{})
//
//	_ = client.Append(ctx, "debasish", chatlog.Entry{Sender: "debasish", Text: "hi there"})
//	log, err := client.ReadLog(ctx, "debasish") // 1 entry
//
// Storage failures on append are reported to the sending client (see
// [AppendObserver]) and to the actor's OnError hook; they are never retried.
// Reads return them directly.
package chatlog
