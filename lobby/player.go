package lobby

import (
	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/protocol"
)

// lobbyPlayer forwards a connection's events to the lobby's game.
type lobbyPlayer struct {
	lobby *Lobby
	name  string
}

func (p *lobbyPlayer) OnMoepButton() {
	if p.lobby.game == nil {
		p.log().Info("Moep button pressed")
		return
	}

	p.lobby.game.MoepButton(p.name)
}

func (p *lobbyPlayer) OnCardPlayed(card protocol.Card) {
	if p.lobby.game == nil {
		p.log().Info("Card played", zap.Stringer("card", card))
		return
	}

	p.lobby.game.CardPlayed(p.name, card)
}

func (p *lobbyPlayer) OnCardDrawn() {
	if p.lobby.game == nil {
		p.log().Info("Card drawn")
		return
	}

	p.lobby.game.CardDrawn(p.name)
}

// OnDisconnected only logs, the roster is cleaned up by Lobby.Disconnected.
func (p *lobbyPlayer) OnDisconnected() {
	p.log().Info("Lost connection to player")
}

func (p *lobbyPlayer) log() *zap.Logger {
	return p.lobby.log.With(zap.String("login", p.name))
}

var _ connection.Player = (*lobbyPlayer)(nil)
