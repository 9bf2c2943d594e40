package remote

import "context"

// ChangeKind classifies an incremental difference reported by a live query.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// DocChange is one entry of a change batch pushed by a live subscription.
type DocChange struct {
	Kind ChangeKind
	Doc  Document
}

// Subscription is the cancellable handle of a live query.
// Cancel is idempotent and must be called on every exit path of the
// observing scope; a forgotten handle leaks a live server subscription.
type Subscription interface {
	Cancel()
}

// MessageHandler receives incremental change batches for one conversation,
// in the server's timestamp order. A non-nil error means the subscription
// has failed and will deliver nothing further.
type MessageHandler func(changes []DocChange, err error)

// SnapshotHandler receives full query results; each push replaces the
// previous one entirely.
type SnapshotHandler func(docs []Document, err error)

// DocHandler receives the latest state of a single observed document.
type DocHandler func(doc Document, err error)

// Store is the client-facing surface of the remote document store.
// Collections: chats (with a nested messages collection), groups, users.
// Supported queries are fixed: equality, array-contains on members, and
// single-field ascending/descending order.
type Store interface {
	// GetChat returns errors.ErrDocumentNotFound for an absent conversation.
	GetChat(ctx context.Context, chatID string) (Document, error)
	CreateChat(ctx context.Context, chatID string, fields map[string]any) error
	// UpdateChat merges the given fields into an existing conversation doc.
	UpdateChat(ctx context.Context, chatID string, fields map[string]any) error

	// NewMessageID allocates a server-style identifier for a message
	// document before it is written, mirroring document-reference creation.
	NewMessageID(chatID string) string
	// CreateMessage writes a message document under the conversation.
	// An empty messageID lets the store allocate one. The returned document
	// carries the final server-assigned fields, timestamp included.
	CreateMessage(ctx context.Context, chatID, messageID string, fields map[string]any) (Document, error)

	// ListenMessages opens a live query over one conversation's messages,
	// ordered by timestamp ascending, delivering incremental changes.
	ListenMessages(chatID string, fn MessageHandler) Subscription

	// ListenChats observes "chats whose members contain userID", ordered by
	// lastMessageTimestamp descending, as full snapshots.
	ListenChats(userID string, fn SnapshotHandler) Subscription

	CreateGroup(ctx context.Context, fields map[string]any) (string, error)
	ListenGroups(userID string, fn SnapshotHandler) Subscription
	ListenGroup(groupID string, fn DocHandler) Subscription
	// UpdateGroupMembers runs a read-modify-write transaction over the
	// member list of a group.
	UpdateGroupMembers(ctx context.Context, groupID string, mutate func(members []string) []string) error

	GetUser(ctx context.Context, userID string) (Document, error)
	SetUser(ctx context.Context, userID string, fields map[string]any) error
	UpdateUser(ctx context.Context, userID string, fields map[string]any) error
	FindUserByEmail(ctx context.Context, email string) (Document, error)
}

// BlobStorage stores binary objects addressed by path and returns a
// fetchable download URL after upload.
type BlobStorage interface {
	Upload(ctx context.Context, path string, data []byte) (url string, err error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Authenticator is the remote account service.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (userID string, err error)
	SignIn(ctx context.Context, email, password string) (userID string, err error)
}

// Messaging hands out the device push token, when one is available.
type Messaging interface {
	Token(ctx context.Context) (string, error)
}

// Session exposes the identity the client currently acts as.
// An empty identifier means signed out.
type Session interface {
	CurrentUserID() string
}
