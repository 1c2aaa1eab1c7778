package mailbox

// RawMessage carries the fields of one fetched mailbox message before
// normalization. InternalDate is the provider's receipt timestamp in
// milliseconds since the epoch and doubles as the fetch cursor basis.
type RawMessage struct {
	ID           string
	From         string
	Subject      string
	Body         string
	InternalDate int64
}
