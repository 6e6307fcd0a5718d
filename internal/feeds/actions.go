package feeds

// ActionType names an action, mostly for logging.
type ActionType string

const (
	TypeRequest        ActionType = "READER_FEED_REQUEST"
	TypeRequestSuccess ActionType = "READER_FEED_REQUEST_SUCCESS"
	TypeRequestFailure ActionType = "READER_FEED_REQUEST_FAILURE"
	TypeSerialize      ActionType = "SERIALIZE"
	TypeDeserialize    ActionType = "DESERIALIZE"
)

// Action is an event applied to the cache by the reducers.
type Action interface {
	Type() ActionType
}

type (
	// RequestFeed marks the start of a fetch.
	RequestFeed struct {
		FeedID int64
	}

	// RequestSuccess carries the record the API returned.
	RequestSuccess struct {
		Payload Record
	}

	// RequestFailure reports a failed fetch. Err is not kept in the cache.
	RequestFailure struct {
		FeedID int64
		Err    error
	}

	// Serialize asks for the persistable view of the cache.
	Serialize struct{}

	// Deserialize restores the cache from a persisted snapshot.
	Deserialize struct {
		Snapshot Snapshot
	}
)

func (RequestFeed) Type() ActionType    { return TypeRequest }
func (RequestSuccess) Type() ActionType { return TypeRequestSuccess }
func (RequestFailure) Type() ActionType { return TypeRequestFailure }
func (Serialize) Type() ActionType      { return TypeSerialize }
func (Deserialize) Type() ActionType    { return TypeDeserialize }
