package models

// RoomAction is one entry of a room's action log, consumed by the historian.
type RoomAction struct {
	RoomID      string                 `json:"room_id"`
	GameNo      int                    `json:"game_no"`
	ActionIndex int                    `json:"action_index"`
	ActorID     string                 `json:"actor_id"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}
