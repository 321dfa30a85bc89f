package protocol

// AuthLogin presents a bearer token. Verifying it is left to the auth
// collaborator.
type AuthLogin struct {
	Envelope
	Token string `json:"token"`
}

type AuthLogout struct {
	Envelope
}

// Move is a one-tile movement intent.
type Move struct {
	Envelope
	Direction Direction `json:"direction"`
	Running   bool      `json:"running"`
}

type Stop struct {
	Envelope
}

type Attack struct {
	Envelope
	TargetID   string     `json:"targetId"`
	TargetType TargetType `json:"targetType"`
}

type UseSkill struct {
	Envelope
	SkillID        string    `json:"skillId"`
	TargetID       string    `json:"targetId,omitempty"`
	TargetPosition *Position `json:"targetPosition,omitempty"`
}

type Chat struct {
	Envelope
	Channel        ChatChannel `json:"channel"`
	Content        string      `json:"content"`
	TargetPlayerID string      `json:"targetPlayerId,omitempty"`
}

type PickupItem struct {
	Envelope
	ItemID string `json:"itemId"`
}

type DropItem struct {
	Envelope
	Slot     int `json:"slot"`
	Quantity int `json:"quantity"`
}

// GodToggle is admin only.
type GodToggle struct {
	Envelope
	Enabled bool `json:"enabled"`
}

// GodTeleport is admin only.
type GodTeleport struct {
	Envelope
	MapID string `json:"mapId"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

type Ping struct {
	Envelope
}

// RequestSync asks for a fresh world snapshot.
type RequestSync struct {
	Envelope
}

func (*AuthLogin) Kind() Kind   { return KindAuthLogin }
func (*AuthLogout) Kind() Kind  { return KindAuthLogout }
func (*Move) Kind() Kind        { return KindMove }
func (*Stop) Kind() Kind        { return KindStop }
func (*Attack) Kind() Kind      { return KindAttack }
func (*UseSkill) Kind() Kind    { return KindUseSkill }
func (*Chat) Kind() Kind        { return KindChat }
func (*PickupItem) Kind() Kind  { return KindPickupItem }
func (*DropItem) Kind() Kind    { return KindDropItem }
func (*GodToggle) Kind() Kind   { return KindGodToggle }
func (*GodTeleport) Kind() Kind { return KindGodTeleport }
func (*Ping) Kind() Kind        { return KindPing }
func (*RequestSync) Kind() Kind { return KindRequestSync }

func (*AuthLogin) clientMessage()   {}
func (*AuthLogout) clientMessage()  {}
func (*Move) clientMessage()        {}
func (*Stop) clientMessage()        {}
func (*Attack) clientMessage()      {}
func (*UseSkill) clientMessage()    {}
func (*Chat) clientMessage()        {}
func (*PickupItem) clientMessage()  {}
func (*DropItem) clientMessage()    {}
func (*GodToggle) clientMessage()   {}
func (*GodTeleport) clientMessage() {}
func (*Ping) clientMessage()        {}
func (*RequestSync) clientMessage() {}
