package web

// RoomPage is what the join page needs to render a room.
type RoomPage struct {
	RoomID      uint
	Code        string
	Status      string
	PlayerCount int
	MaxPlayers  int
	QRPath      string
}

func (p RoomPage) Joinable() bool {
	return p.Status == "lobby" && p.PlayerCount < p.MaxPlayers
}
