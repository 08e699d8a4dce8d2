package featureflag

type Flag string

const (
	// Skips the session state sent after joining a session.
	FlagDisableSessionState Flag = "DISABLE_SESSION_STATE"

	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisableTileUpdateBroadcast       Flag = "DISABLE_TILE_UPDATE_BROADCAST"

	// Sweeps the four quadrants of a field of view concurrently.
	FlagParallelQuadrants Flag = "PARALLEL_QUADRANTS"
)
