package types

// SessionKey is the fixed key of the singleton session row. Only one
// session may exist at a time; a new login replaces it.
const SessionKey = "current"

// Session records the identity chosen at login. Its absence from the
// store is the definition of "unauthenticated".
type Session struct {
	ResponderName  string `json:"responder_name"`
	LoginTimestamp int64  `json:"login_timestamp"` // milliseconds since epoch
}
