package chathub

// Client is one live push connection. Requester clients only see events of
// their own sessions; admin clients see every event.
type Client interface {
	// GetID returns the connection id, unique per hub.
	GetID() string
	// GetRequesterKey returns models.Requester.Key() of the owner, empty for admins.
	GetRequesterKey() string
	IsAdmin() bool

	// GetSendChannel returns the channel the hub writes frames to.
	GetSendChannel() chan<- Frame

	// Run starts the connection's read and write pumps.
	Run()
	// Close shuts down the send channel, which ends the write pump.
	Close()
}
