package server

const (
	PingEndpoint   = "/ping"
	StatusEndpoint = "/v1/status"

	RoomURLParam  = "roomId"
	RoomsEndpoint = "/v1/rooms"
	RoomEndpoint  = "/v1/rooms/{" + RoomURLParam + "}"
	// room transitions, relative to RoomEndpoint
	JoinEndpoint    = RoomEndpoint + "/join"
	AskEndpoint     = RoomEndpoint + "/ask"
	GuessEndpoint   = RoomEndpoint + "/guess"
	RespondEndpoint = RoomEndpoint + "/respond"
	WonEndpoint     = RoomEndpoint + "/won"
	ResetEndpoint   = RoomEndpoint + "/reset"
	QuitEndpoint    = RoomEndpoint + "/quit"
	// EventsEndpoint streams room events as server-sent events.
	EventsEndpoint = RoomEndpoint + "/events"

	CircuitURLParam  = "circuit"
	VerifierEndpoint = "/v1/verifier/{" + CircuitURLParam + "}"
	// ProveEndpoint proves a statement for a caller that sends its secret.
	// Meant for local use by a player's own node.
	ProveEndpoint  = "/v1/prove/{" + CircuitURLParam + "}"
	VerifyEndpoint = "/v1/verify"
)
