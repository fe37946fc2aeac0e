package domain

// Task is one logged activity. Tasks are immutable once created;
// (UserID, Timestamp) is unique per user and Timestamp doubles as the id.
type Task struct {
	UserID    string
	Timestamp int64 // milliseconds since epoch
	Text      string
}
