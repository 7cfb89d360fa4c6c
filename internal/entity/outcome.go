package entity

type OutcomeKind int

const (
	OutcomeInProgress OutcomeKind = iota
	OutcomeWon
	OutcomeDraw
)

func (that OutcomeKind) String() string {
	switch that {
	case OutcomeWon:
		return "won"
	case OutcomeDraw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Outcome is InProgress, Won(symbol) or Draw. Winner is set only for Won.
type Outcome struct {
	Kind   OutcomeKind
	Winner Symbol
}

func InProgress() Outcome {
	return Outcome{Kind: OutcomeInProgress}
}

func Won(symbol Symbol) Outcome {
	return Outcome{Kind: OutcomeWon, Winner: symbol}
}

func Draw() Outcome {
	return Outcome{Kind: OutcomeDraw}
}

func (that Outcome) IsTerminal() bool {
	return that.Kind != OutcomeInProgress
}

func (that Outcome) String() string {
	if that.Kind == OutcomeWon {
		return "won(" + string(that.Winner) + ")"
	}

	return that.Kind.String()
}
