package protocol

import (
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

type Kind string

const (
	KindSymbol       Kind = "SYMBOL"
	KindBoard        Kind = "BOARD"
	KindYourTurn     Kind = "YOUR_TURN"
	KindOpponentTurn Kind = "OPPONENT_TURN"
	KindValidMove    Kind = "VALID_MOVE"
	KindInvalidMove  Kind = "INVALID_MOVE"
	KindWin          Kind = "WIN"
	KindLoss         Kind = "LOSS"
	KindDraw         Kind = "DRAW"
	KindMessage      Kind = "MESSAGE"
)

// Notification is one outbound line.
type Notification struct {
	Kind Kind
	Arg  string
}

func (that Notification) String() string {
	if that.Arg == "" {
		return string(that.Kind)
	}

	return string(that.Kind) + " " + that.Arg
}

func Symbol(symbol entity.Symbol) Notification {
	return Notification{Kind: KindSymbol, Arg: string(symbol)}
}

func Board(board entity.Board) Notification {
	return Notification{Kind: KindBoard, Arg: board.String()}
}

func YourTurn() Notification {
	return Notification{Kind: KindYourTurn}
}

func OpponentTurn(name string) Notification {
	return Notification{Kind: KindOpponentTurn, Arg: name}
}

func ValidMove() Notification {
	return Notification{Kind: KindValidMove}
}

func InvalidMove() Notification {
	return Notification{Kind: KindInvalidMove}
}

func Win() Notification {
	return Notification{Kind: KindWin}
}

func Loss() Notification {
	return Notification{Kind: KindLoss}
}

func Draw() Notification {
	return Notification{Kind: KindDraw}
}

// Message carries free text; line breaks are flattened so one notification stays one line.
func Message(text string) Notification {
	return Notification{Kind: KindMessage, Arg: strings.Join(strings.Fields(text), " ")}
}

// Messages sent by the coordinator.
const (
	TextConnected       = "Connected to the server"
	TextYouArePlayer    = "You are a player"
	TextYouAreSpectator = "You are a spectator"
	TextWaiting         = "Waiting for an opponent"
	TextNoReplacement   = "There are no available replacements. The game is over."
	TextPromoted        = "You are joining the game as an opponent!"
	TextServerFull      = "Server is full"
	TextNameTaken       = "Username already taken"
	TextServerShutdown  = "Server has disconnected."
	TextDraw            = "It's a draw."
)

func TurnText(name string) string {
	return "It's " + name + "'s turn"
}

func WonText(name string) string {
	return name + " won!"
}

func LeftText(name string) string {
	return "Player " + name + " has disconnected and/or left the game."
}

func ReplacedText(departed, promoted string) string {
	return "Opponent " + departed + " is now replaced by " + promoted
}

func ChatText(name, text string) string {
	return name + ": " + text
}
